// Package resources implements MCP resource handlers for the evolution
// engine.
//
// Resources provide read-only data that the host can consume for
// context. They use URI-based addressing (evonest://...) following MCP
// conventions.
package resources

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/state"
)

// Handler manages evolution resource endpoints.
type Handler struct{}

// NewHandler creates a resource Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// ProgressResource returns the MCP resource definition for evolution
// progress.
func (h *Handler) ProgressResource() mcp.Resource {
	return mcp.NewResource(
		"evonest://project/progress",
		"Evolution Progress",
		mcp.WithResourceDescription("Accumulated cycle statistics for the nearest evolved project"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleProgress returns the raw progress record as JSON.
func (h *Handler) HandleProgress(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	projectRoot, err := findRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	st := state.New(projectRoot)
	if !st.Initialized() {
		return errorResource(req.Params.URI,
			"no .evonest/ directory found; run evonest_init first"), nil
	}
	data, err := st.ReadText(st.ProgressPath())
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     data,
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
