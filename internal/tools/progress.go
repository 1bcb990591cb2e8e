package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/memory"
	"github.com/HendryAvila/evonest/internal/progress"
)

// ProgressTool handles the evonest_progress MCP tool.
type ProgressTool struct{}

// NewProgressTool creates a ProgressTool.
func NewProgressTool() *ProgressTool {
	return &ProgressTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *ProgressTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_progress",
		mcp.WithDescription(
			"Show accumulated evolution statistics: totals, "+
				"per-persona and per-adversarial success rates and weights, "+
				"plus aggregates from the history index when available.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
	)
}

// Handle processes the evonest_progress tool call.
func (t *ProgressTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, _, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}
	p, err := st.ReadProgress()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(progress.Report(p))
	if section := indexSection(st.MemoryDBPath()); section != "" {
		b.WriteString("\n")
		b.WriteString(section)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// indexSection summarizes the sqlite history index. A missing or broken
// index is not an error: the JSON progress file is the primary record.
func indexSection(dbPath string) string {
	idx, err := memory.Open(dbPath)
	if err != nil {
		return ""
	}
	defer idx.Close()

	cycles, successes, err := idx.Totals()
	if err != nil || cycles == 0 {
		return ""
	}
	aggs, err := idx.PersonaAggregates()
	if err != nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## History Index\n\n%d cycle(s) indexed, %d succeeded.\n", cycles, successes)
	if len(aggs) > 0 {
		b.WriteString("\nMost used personas:\n")
		for i, a := range aggs {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "  %s: %d run(s), %d succeeded\n", a.Persona, a.Uses, a.Successes)
		}
	}
	return b.String()
}
