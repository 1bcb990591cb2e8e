package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/lock"
	"github.com/HendryAvila/evonest/internal/phases"
	"github.com/HendryAvila/evonest/internal/scout"
)

// ScoutTool handles the evonest_scout MCP tool: run one external
// research pass on demand, outside the cycle cadence.
type ScoutTool struct {
	lm phases.LM
}

// NewScoutTool creates a ScoutTool backed by the given runner.
func NewScoutTool(lm phases.LM) *ScoutTool {
	return &ScoutTool{lm: lm}
}

// Definition returns the MCP tool definition for registration.
func (t *ScoutTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_scout",
		mcp.WithDescription(
			"Run one scout pass immediately: research external sources for "+
				"ideas relevant to the project and inject qualifying findings "+
				"as stimuli for the next observation.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
	)
}

// Handle processes the evonest_scout tool call.
func (t *ScoutTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, cfg, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}

	lk, err := lock.Acquire(st.LockPath())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer lk.Release()

	p, err := st.ReadProgress()
	if err != nil {
		return nil, err
	}
	sum, err := scout.Run(ctx, st, cfg, t.lm, p.TotalCycles)
	if err != nil {
		return mcp.NewToolResultError("Scout pass failed: " + err.Error()), nil
	}

	p.LastScoutCycle = p.TotalCycles
	if err := st.WriteProgress(p); err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Scout pass complete: %d finding(s), %d injected as stimuli "+
			"(%d below score threshold, %d already seen).",
		sum.Found, sum.Injected, sum.SkippedScore, sum.SkippedDuplicate)), nil
}
