// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools/prompts/resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/evonest/internal/prompts"
	"github.com/HendryAvila/evonest/internal/resources"
	"github.com/HendryAvila/evonest/internal/runner"
	"github.com/HendryAvila/evonest/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function must be called on shutdown (typically
// via defer). It is always non-nil.
func New() (*server.MCPServer, func(), error) {
	// --- Create shared dependencies ---

	// One runner serves every phase: Observe, Plan, Execute, meta,
	// scout, and identity drafting all go through claude -p.
	lm := runner.New()

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"evonest",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register lifecycle tools ---

	initTool := tools.NewInitTool(lm)
	s.AddTool(initTool.Definition(), initTool.Handle)

	evolveTool := tools.NewEvolveTool(lm)
	s.AddTool(evolveTool.Definition(), evolveTool.Handle)

	analyzeTool := tools.NewAnalyzeTool(lm)
	s.AddTool(analyzeTool.Definition(), analyzeTool.Handle)

	improveTool := tools.NewImproveTool(lm)
	s.AddTool(improveTool.Definition(), improveTool.Handle)

	scoutTool := tools.NewScoutTool(lm)
	s.AddTool(scoutTool.Definition(), scoutTool.Handle)

	// --- Register inspection tools ---

	statusTool := tools.NewStatusTool()
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	progressTool := tools.NewProgressTool()
	s.AddTool(progressTool.Definition(), progressTool.Handle)

	historyTool := tools.NewHistoryTool()
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	proposalsTool := tools.NewProposalsTool()
	s.AddTool(proposalsTool.Definition(), proposalsTool.Handle)

	// --- Register steering tools ---
	//
	// These write human input into the knowledge base; the engine
	// consumes it on its next pass.

	configTool := tools.NewConfigTool()
	s.AddTool(configTool.Definition(), configTool.Handle)

	backlogTool := tools.NewBacklogTool()
	s.AddTool(backlogTool.Definition(), backlogTool.Handle)

	personasTool := tools.NewPersonasTool()
	s.AddTool(personasTool.Definition(), personasTool.Handle)

	stimuliTool := tools.NewStimuliTool()
	s.AddTool(stimuliTool.Definition(), stimuliTool.Handle)

	decideTool := tools.NewDecideTool()
	s.AddTool(decideTool.Definition(), decideTool.Handle)

	identityTool := tools.NewIdentityTool(lm)
	s.AddTool(identityTool.Definition(), identityTool.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler()
	s.AddResource(resourceHandler.ProgressResource(), resourceHandler.HandleProgress)

	return s, noop, nil
}

// noop is the default cleanup function. The server currently holds no
// long-lived handles; per-run resources (locks, the history index) are
// opened and closed inside each tool call.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use the engine effectively.
func serverInstructions() string {
	return `You have access to Evonest, an autonomous code evolution engine.

## What Evonest Does

Evonest drives a codebase through repeated evolution cycles. Each cycle
picks a persona (a reviewer archetype such as a performance engineer or
a security auditor), observes the code through that lens, plans one
improvement, executes it, and verifies the result. Passing changes are
committed; failing ones are rolled back. Everything the engine learns
lives under .evonest/ in the target project.

## Getting Started

1. evonest_init(path) — set up .evonest/ and draft the project identity
2. Review the identity with evonest_identity and refine it with the user
3. evonest_evolve(project, cycles=N) — run evolution cycles

The identity document anchors every phase. A vague identity produces
unfocused mutations, so invest in it before long runs.

## Steering the Engine

The user stays in control through the knowledge base:

- evonest_stimuli — one-shot notes consumed by the next observation
  ("look at the parser package", "we care about allocation pressure")
- evonest_decide — binding instructions for the next execution phase
  ("use library X, not Y")
- evonest_backlog — durable improvement items the planner draws from
- evonest_personas — enable/disable mutation archetypes
- evonest_config — tune cycles, models, verification commands, levels

Relay user intent through these tools rather than paraphrasing it into
the evolve call.

## Safe Exploration

- evonest_analyze — observe-only sweep; writes proposals, changes nothing
- evonest_proposals — list what analyze found
- evonest_improve — implement one reviewed proposal end to end
- evonest_evolve(cautious=true) — pause after planning; show the plan to
  the user, then resume with the returned token or cancel

Prefer analyze + improve when the user wants to review before anything
touches the working tree.

## Monitoring

- evonest_status — knowledge base overview
- evonest_progress — success rates, persona weights
- evonest_history — what recent cycles actually did
- evonest_scout — run an external research pass on demand

## Important Rules

- Always evonest_init before anything else; tools error on an
  uninitialized project
- Evolution requires a git repository with a clean-enough tree; failed
  cycles are rolled back automatically
- One run at a time per project; a lock file guards against overlap
- After a run, summarize the outcome for the user: cycles run, what
  succeeded, what was rolled back and why`
}
