package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// StimuliTool handles the evonest_stimuli MCP tool: inject a one-shot
// directive the next Observe phase consumes.
type StimuliTool struct{}

// NewStimuliTool creates a StimuliTool.
func NewStimuliTool() *StimuliTool {
	return &StimuliTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *StimuliTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_stimuli",
		mcp.WithDescription(
			"Add a stimulus: a one-shot note injected into the next observation "+
				"pass and consumed by it. Use this to steer the engine toward an "+
				"area or idea. Omit 'content' to list pending stimuli.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithString("content",
			mcp.Description("Stimulus text (markdown); omit to list pending stimuli"),
		),
	)
}

// Handle processes the evonest_stimuli tool call.
func (t *StimuliTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, _, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}

	content := req.GetString("content", "")
	if content == "" {
		pending, err := st.ListStimuli()
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 {
			return mcp.NewToolResultText("No pending stimuli."), nil
		}
		var names []string
		for _, p := range pending {
			names = append(names, "- "+filepath.Base(p))
		}
		return mcp.NewToolResultText(fmt.Sprintf("Pending stimuli (%d):\n%s",
			len(pending), strings.Join(names, "\n"))), nil
	}

	path, err := st.AddStimulus(content)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText("Stimulus added: " + filepath.Base(path) +
		"\nIt will be consumed by the next observation pass."), nil
}
