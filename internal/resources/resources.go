// Package resources implements MCP resource handlers for captured
// knowledge.
//
// Resources provide read-only data that the host can consume for
// context. They use URI-based addressing (mneme://...) following MCP
// conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
	"github.com/hir4ta/mneme-sub001/internal/index"
	"github.com/hir4ta/mneme-sub001/internal/store"
)

// Handler manages the knowledge resource endpoints.
type Handler struct {
	store *store.Store
	docs  *docstore.Store
	idx   *index.Manager
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(st *store.Store, docs *docstore.Store, idx *index.Manager) *Handler {
	return &Handler{store: st, docs: docs, idx: idx}
}

// RecentResource returns the MCP resource definition for the recent
// knowledge index.
func (h *Handler) RecentResource() mcp.Resource {
	return mcp.NewResource(
		"mneme://index/recent",
		"Recent Knowledge Index",
		mcp.WithResourceDescription("Recently captured sessions and decisions, newest first"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleRecent returns the recent index aggregate as JSON. When no
// aggregate has been built yet, an empty one is returned rather than
// an error.
func (h *Handler) HandleRecent(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	recent, err := h.idx.ReadRecent(0)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	if recent == nil {
		recent = &index.RecentIndex{}
	}
	return jsonResource(req.Params.URI, recent)
}

// StatsResource returns the MCP resource definition for store
// statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		"mneme://stats",
		"Knowledge Store Statistics",
		mcp.WithResourceDescription("Archived turn counts, tracked sessions, and pending backups"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns aggregate store statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.store.Stats()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, stats)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
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
