package resources

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/templates"
)

func readRequest(uri string) mcp.ReadResourceRequest {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

func contentText(t *testing.T, contents []mcp.ResourceContents) mcp.TextResourceContents {
	t.Helper()
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] is %T, want TextResourceContents", contents[0])
	}
	return tc
}

// resolve follows symlinks so paths compare cleanly on macOS, where
// TempDir lives under a /var symlink.
func resolve(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("resolving %s: %v", path, err)
	}
	return resolved
}

// --- findRoot ---

func TestFindRoot_WalksUp(t *testing.T) {
	project := t.TempDir()
	if _, err := templates.InitProject(context.Background(), project, "", nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	nested := filepath.Join(project, "internal", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	root, err := findRoot()
	if err != nil {
		t.Fatalf("findRoot: %v", err)
	}
	if resolve(t, root) != resolve(t, project) {
		t.Errorf("root = %q, want %q", root, project)
	}
}

func TestFindRoot_FallsBackToCwd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	root, err := findRoot()
	if err != nil {
		t.Fatalf("findRoot: %v", err)
	}
	if resolve(t, root) != resolve(t, dir) {
		t.Errorf("root = %q, want cwd %q", root, dir)
	}
}

// --- HandleProgress ---

func TestHandleProgress(t *testing.T) {
	project := t.TempDir()
	if _, err := templates.InitProject(context.Background(), project, "", nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Chdir(project)

	h := NewHandler()
	contents, err := h.HandleProgress(context.Background(), readRequest("evonest://project/progress"))
	if err != nil {
		t.Fatalf("HandleProgress: %v", err)
	}
	tc := contentText(t, contents)
	if tc.MIMEType != "application/json" {
		t.Errorf("mime = %q", tc.MIMEType)
	}
	if !strings.Contains(tc.Text, "total_cycles") {
		t.Errorf("text = %q", tc.Text)
	}
}

func TestHandleProgress_Uninitialized(t *testing.T) {
	t.Chdir(t.TempDir())

	contents, err := NewHandler().HandleProgress(context.Background(), readRequest("evonest://project/progress"))
	if err != nil {
		t.Fatalf("HandleProgress: %v", err)
	}
	tc := contentText(t, contents)
	if !strings.HasPrefix(tc.Text, "Error:") || !strings.Contains(tc.Text, "evonest_init") {
		t.Errorf("text = %q", tc.Text)
	}
}
