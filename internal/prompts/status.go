package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the evonest-status MCP prompt.
// It instructs the AI to read and present the project's evolution state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("evonest-status",
		mcp.WithPromptDescription(
			"Check how evolution is going: cycle totals, persona "+
				"performance, recent history and pending proposals.",
		),
		mcp.WithArgument("project",
			mcp.ArgumentDescription("Absolute path to the evolved project"),
		),
	)
}

// Handle processes the evonest-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := "the current project"
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["project"]; ok && v != "" {
			project = v
		}
	}

	return &mcp.GetPromptResult{
		Description: "Evolution status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please check how evolution is going for '" + project + "':\n\n" +
						"1. Run `evonest_status` and `evonest_progress` and present the " +
						"state in a clear, visual format\n" +
						"2. Run `evonest_history` and summarize what the recent cycles did\n" +
						"3. Run `evonest_proposals` and list anything waiting for my review\n" +
						"4. Point out underperforming personas or a failure streak if you " +
						"see one, and tell me exactly what I should do next",
				),
			},
		},
	}, nil
}
