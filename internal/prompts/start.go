// Package prompts implements MCP prompt handlers for the evolution
// engine.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the evonest-start MCP prompt.
// It guides the AI to set up a project and run its first cycle.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("evonest-start",
		mcp.WithPromptDescription(
			"Set a project up for autonomous evolution: initialize the "+
				".evonest/ knowledge base, review the drafted identity, and "+
				"run the first evolution cycle.",
		),
		mcp.WithArgument("project",
			mcp.ArgumentDescription("Absolute path to the project to evolve"),
		),
		mcp.WithArgument("level",
			mcp.ArgumentDescription(
				"Intensity preset: 'quick', 'standard' or 'deep'. Default: standard",
			),
		),
	)
}

// Handle processes the evonest-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := "the current project"
	level := "standard"
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["project"]; ok && v != "" {
			project = v
		}
		if v, ok := args["level"]; ok && v != "" {
			level = v
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start evolving: %s", project),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to start evolving '%s' at the '%s' level.\n\n"+
						"Please:\n"+
						"1. Run `evonest_init` with path='%s' and level='%s'\n"+
						"2. Show me the drafted identity document (`evonest_identity`) "+
						"and ask whether it captures what this project is\n"+
						"3. If I want changes, apply them with `evonest_identity` action='update'\n"+
						"4. Run `evonest_evolve` with cycles=1 and walk me through what "+
						"the cycle observed, planned and changed\n"+
						"5. Suggest whether to continue with more cycles, add stimuli to "+
						"steer the engine, or adjust the configuration",
					project, level, project, level,
				)),
			},
		},
	}, nil
}
