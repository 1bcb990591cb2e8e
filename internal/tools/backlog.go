package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/backlog"
)

// BacklogTool handles the evonest_backlog MCP tool.
type BacklogTool struct{}

// NewBacklogTool creates a BacklogTool.
func NewBacklogTool() *BacklogTool {
	return &BacklogTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *BacklogTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_backlog",
		mcp.WithDescription(
			"Manage the improvement backlog. Actions: 'list' shows all items, "+
				"'add' inserts one (pass an 'item' object with title, category, "+
				"priority, files), 'remove' deletes by id, 'prune' drops old "+
				"completed and stale items.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithString("action",
			mcp.DefaultString("list"),
			mcp.Enum("list", "add", "remove", "prune"),
		),
		mcp.WithObject("item",
			mcp.Description("For 'add': {title, description, category, priority, files}. For 'remove': {id}."),
		),
	)
}

// Handle processes the evonest_backlog tool call.
func (t *BacklogTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, _, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}
	item := mapArg(req, "item")

	switch req.GetString("action", "list") {
	case "add":
		imp := backlog.Improvement{
			Title:       stringField(item, "title"),
			Description: stringField(item, "description"),
			Category:    stringField(item, "category"),
			Priority:    stringField(item, "priority"),
		}
		if raw, ok := item["files"].([]any); ok {
			for _, f := range raw {
				if s, ok := f.(string); ok {
					imp.Files = append(imp.Files, s)
				}
			}
		}
		if imp.Title == "" {
			return mcp.NewToolResultError("'item.title' is required for action='add'"), nil
		}
		p, err := st.ReadProgress()
		if err != nil {
			return nil, err
		}
		added, err := backlog.SaveObservations(st, []backlog.Improvement{imp}, "human", p.TotalCycles)
		if err != nil {
			return nil, err
		}
		if added == 0 {
			return mcp.NewToolResultText("Item already present; nothing added."), nil
		}
		return mcp.NewToolResultText("Added 1 backlog item."), nil

	case "remove":
		id := stringField(item, "id")
		if id == "" {
			return mcp.NewToolResultError("'item.id' is required for action='remove'"), nil
		}
		if err := backlog.Remove(st, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Removed: " + id), nil

	case "prune":
		p, err := st.ReadProgress()
		if err != nil {
			return nil, err
		}
		pruned, err := backlog.Prune(st, p.TotalCycles)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(fmt.Sprintf("Pruned %d item(s).", pruned)), nil

	default:
		bl, err := st.ReadBacklog()
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(backlog.Report(bl)), nil
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
