package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/state"
	"github.com/HendryAvila/evonest/internal/templates"
)

// initProject lays down a fresh .evonest/ tree and returns its path.
func initProject(t *testing.T) string {
	t.Helper()
	project := t.TempDir()
	if _, err := templates.InitProject(context.Background(), project, "", nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	return project
}

func request(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- loadProject ---

func TestLoadProject_Errors(t *testing.T) {
	_, _, errRes := loadProject("", nil)
	if !isErrorResult(errRes) {
		t.Error("empty project accepted")
	}

	_, _, errRes = loadProject(t.TempDir(), nil)
	if !isErrorResult(errRes) {
		t.Fatal("uninitialized project accepted")
	}
	if !strings.Contains(getResultText(errRes), "evonest_init") {
		t.Errorf("error does not point at init: %q", getResultText(errRes))
	}
}

// --- InitTool ---

func TestInitTool(t *testing.T) {
	tool := NewInitTool(nil)
	project := t.TempDir()

	result, err := tool.Handle(context.Background(), request(map[string]any{"path": project}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("init failed: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), "Initialized:") {
		t.Errorf("result = %q", getResultText(result))
	}
	if !state.New(project).Initialized() {
		t.Error("project not initialized after tool call")
	}

	result, err = tool.Handle(context.Background(), request(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("missing path accepted")
	}
}

// --- StimuliTool ---

func TestStimuliTool_AddAndList(t *testing.T) {
	tool := NewStimuliTool()
	project := initProject(t)

	result, err := tool.Handle(context.Background(), request(map[string]any{"project": project}))
	if err != nil {
		t.Fatal(err)
	}
	if getResultText(result) != "No pending stimuli." {
		t.Errorf("empty list = %q", getResultText(result))
	}

	result, err = tool.Handle(context.Background(), request(map[string]any{
		"project": project,
		"content": "look at the cache layer",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(getResultText(result), "Stimulus added:") {
		t.Errorf("result = %q", getResultText(result))
	}

	result, err = tool.Handle(context.Background(), request(map[string]any{"project": project}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(getResultText(result), "Pending stimuli (1):") {
		t.Errorf("list = %q", getResultText(result))
	}
}

// --- DecideTool ---

func TestDecideTool(t *testing.T) {
	tool := NewDecideTool()
	project := initProject(t)

	result, err := tool.Handle(context.Background(), request(map[string]any{"project": project}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("missing content accepted")
	}

	result, err = tool.Handle(context.Background(), request(map[string]any{
		"project": project,
		"content": "use zap, not slog",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(getResultText(result), "Decision recorded:") {
		t.Errorf("result = %q", getResultText(result))
	}

	decisions, err := state.New(project).ListDecisions()
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 1 {
		t.Errorf("decisions = %d, want 1", len(decisions))
	}
}

// --- StatusTool ---

func TestStatusTool(t *testing.T) {
	tool := NewStatusTool()
	project := initProject(t)

	result, err := tool.Handle(context.Background(), request(map[string]any{"project": project}))
	if err != nil {
		t.Fatal(err)
	}
	text := getResultText(result)
	if !strings.Contains(text, "# Evolution Status:") || !strings.Contains(text, "Cycles: 0") {
		t.Errorf("status = %q", text)
	}
}

// --- BacklogTool ---

func TestBacklogTool(t *testing.T) {
	tool := NewBacklogTool()
	project := initProject(t)
	ctx := context.Background()

	result, err := tool.Handle(ctx, request(map[string]any{
		"project": project,
		"action":  "add",
		"item":    map[string]any{"description": "no title"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("titleless item accepted")
	}

	result, err = tool.Handle(ctx, request(map[string]any{
		"project": project,
		"action":  "add",
		"item": map[string]any{
			"title":    "Reduce lock contention",
			"category": "performance",
			"priority": "high",
			"files":    []any{"internal/lock/lock.go"},
		},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if getResultText(result) != "Added 1 backlog item." {
		t.Errorf("add = %q", getResultText(result))
	}

	// The same title again is a duplicate.
	result, err = tool.Handle(ctx, request(map[string]any{
		"project": project,
		"action":  "add",
		"item":    map[string]any{"title": "Reduce lock contention"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(getResultText(result), "already present") {
		t.Errorf("duplicate add = %q", getResultText(result))
	}

	result, err = tool.Handle(ctx, request(map[string]any{"project": project}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(getResultText(result), "Reduce lock contention") {
		t.Errorf("list = %q", getResultText(result))
	}

	result, err = tool.Handle(ctx, request(map[string]any{
		"project": project,
		"action":  "remove",
		"item":    map[string]any{"id": "improve-does-not-exist"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("removing unknown id succeeded")
	}

	result, err = tool.Handle(ctx, request(map[string]any{"project": project, "action": "prune"}))
	if err != nil {
		t.Fatal(err)
	}
	if getResultText(result) != "Pruned 0 item(s)." {
		t.Errorf("prune = %q", getResultText(result))
	}
}

// --- ConfigTool ---

func TestConfigTool_ViewAndUpdate(t *testing.T) {
	tool := NewConfigTool()
	project := initProject(t)
	ctx := context.Background()

	result, err := tool.Handle(ctx, request(map[string]any{"project": project}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(getResultText(result), `"model"`) {
		t.Errorf("view = %q", getResultText(result))
	}

	result, err = tool.Handle(ctx, request(map[string]any{
		"project":  project,
		"settings": map[string]any{"model": "opus"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if getResultText(result) != "Updated: model" {
		t.Errorf("update = %q", getResultText(result))
	}

	cfg, err := config.Load(project, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "opus" {
		t.Errorf("model = %q after update", cfg.Model)
	}

	result, err = tool.Handle(ctx, request(map[string]any{
		"project":  project,
		"settings": map[string]any{"code_output": "carrier-pigeon"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("invalid setting accepted")
	}
}

// --- argument helpers ---

func TestArgHelpers(t *testing.T) {
	req := request(map[string]any{
		"cycles":   float64(3),
		"cautious": true,
		"tags":     []any{"a", 7, "b"},
		"item":     map[string]any{"id": "x"},
	})

	if got := intArg(req, "cycles", 1); got != 3 {
		t.Errorf("intArg = %d", got)
	}
	if got := intArg(req, "missing", 5); got != 5 {
		t.Errorf("intArg default = %d", got)
	}
	if !boolArg(req, "cautious", false) {
		t.Error("boolArg = false")
	}
	if boolArg(req, "missing", false) {
		t.Error("boolArg default = true")
	}
	if got := stringSliceArg(req, "tags"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("stringSliceArg = %v", got)
	}
	if got := mapArg(req, "item"); got["id"] != "x" {
		t.Errorf("mapArg = %v", got)
	}
	if mapArg(req, "missing") != nil {
		t.Error("mapArg default != nil")
	}
}
