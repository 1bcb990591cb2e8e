package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ConfigTool handles the evonest_config MCP tool: view the resolved
// configuration or update individual settings.
type ConfigTool struct{}

// NewConfigTool creates a ConfigTool.
func NewConfigTool() *ConfigTool {
	return &ConfigTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *ConfigTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_config",
		mcp.WithDescription(
			"View the resolved configuration, or update settings by passing a "+
				"'settings' object (e.g. {\"model\": \"opus\", \"verify\": {\"test\": \"go test ./...\"}}). "+
				"Updates are written to .evonest/config.json.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithObject("settings",
			mcp.Description("Key/value settings to update; omit to view"),
		),
	)
}

// Handle processes the evonest_config tool call.
func (t *ConfigTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, cfg, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}

	settings := mapArg(req, "settings")
	if len(settings) == 0 {
		rendered, err := cfg.ToJSON()
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText("Resolved configuration:\n\n" + rendered), nil
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var updated []string
	for _, k := range keys {
		if err := cfg.Set(k, settings[k]); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("setting %q: %v", k, err)), nil
		}
		updated = append(updated, k)
	}
	if err := cfg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}
	return mcp.NewToolResultText("Updated: " + strings.Join(updated, ", ")), nil
}
