// Package tools implements the MCP tool handlers for the evolution
// engine. Each file holds one tool: a struct carrying its dependencies,
// a Definition for registration, and a Handle method. User mistakes
// (bad arguments, uninitialized projects) come back as tool-result
// errors; infrastructure failures are returned as Go errors.
package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/gitops"
	"github.com/HendryAvila/evonest/internal/orchestrator"
	"github.com/HendryAvila/evonest/internal/phases"
	"github.com/HendryAvila/evonest/internal/state"
)

// loadProject resolves the state handle and configuration for an
// initialized project. The second return is a user-facing error result;
// when it is non-nil the caller should return it directly.
func loadProject(project string, overrides map[string]any) (*state.ProjectState, *config.Config, *mcp.CallToolResult) {
	if project == "" {
		return nil, nil, mcp.NewToolResultError("'project' is required (absolute path to the target project)")
	}
	st := state.New(project)
	if !st.Initialized() {
		return nil, nil, mcp.NewToolResultError(
			fmt.Sprintf("project is not initialized: %s. Run evonest_init first.", project))
	}
	cfg, err := config.Load(project, overrides)
	if err != nil {
		return nil, nil, mcp.NewToolResultError(fmt.Sprintf("loading config: %v", err))
	}
	return st, cfg, nil
}

// applyLevel applies a runtime level preset when the argument is set.
func applyLevel(cfg *config.Config, level string) *mcp.CallToolResult {
	if level == "" {
		return nil
	}
	if err := cfg.ApplyLevelOverride(level); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return nil
}

// newEngine wires the orchestrator for one project.
func newEngine(st *state.ProjectState, cfg *config.Config, lm phases.LM) *orchestrator.Engine {
	return orchestrator.New(st, cfg, lm, gitops.New(st.Project))
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringSliceArg extracts a string-array argument.
func stringSliceArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// mapArg extracts an object argument.
func mapArg(req mcp.CallToolRequest, key string) map[string]any {
	m, ok := req.GetArguments()[key].(map[string]any)
	if !ok {
		return nil
	}
	return m
}
