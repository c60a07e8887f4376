// Package commands implements the write side of the engine.
package commands

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/application/settings"
	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/repository"
)

// Endpoint identifies one vertex of a new edge.
type Endpoint struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label" validate:"required"`
}

// CreateEdgeCommand is the intent to store a new edge under a caller-chosen id.
type CreateEdgeCommand struct {
	ID         string         `json:"id" validate:"required"`
	Label      string         `json:"label" validate:"required"`
	Out        Endpoint       `json:"out" validate:"required"`
	In         Endpoint       `json:"in" validate:"required"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Validate performs structural validation.
func (c CreateEdgeCommand) Validate() error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return apperrors.InvalidInput("id is required")
	case strings.TrimSpace(c.Label) == "":
		return apperrors.InvalidInput("label is required")
	case c.Out.ID == "" || c.Out.Label == "":
		return apperrors.InvalidInput("out vertex id and label are required")
	case c.In.ID == "" || c.In.Label == "":
		return apperrors.InvalidInput("in vertex id and label are required")
	}
	return nil
}

// CreateEdgeHandler submits create-if-absent requests for new edges.
type CreateEdgeHandler struct {
	client   repository.DocumentClient
	resolver graph.VertexResolver
	settings *settings.Store
	logger   *zap.Logger
}

// NewCreateEdgeHandler creates the handler. A nil resolver produces plain
// vertex references.
func NewCreateEdgeHandler(client repository.DocumentClient, resolver graph.VertexResolver, store *settings.Store, logger *zap.Logger) *CreateEdgeHandler {
	if resolver == nil {
		resolver = graph.ReferenceResolver
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreateEdgeHandler{
		client:   client,
		resolver: resolver,
		settings: store,
		logger:   logger.Named("create_edge"),
	}
}

// Handle resolves the endpoints and creates the edge.
func (h *CreateEdgeHandler) Handle(ctx context.Context, cmd CreateEdgeCommand) (*graph.Edge, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	out := h.resolver.Resolve(cmd.Out.ID, cmd.Out.Label, graph.DirectionOut)
	in := h.resolver.Resolve(cmd.In.ID, cmd.In.Label, graph.DirectionIn)
	return h.Create(ctx, cmd.ID, cmd.Label, cmd.Properties, out, in)
}

// Create submits a single create request for an edge between resolved
// endpoints. An existing id fails with EDGE_ALREADY_EXISTS; every other
// backend failure is BACKEND_UNAVAILABLE.
func (h *CreateEdgeHandler) Create(ctx context.Context, id, label string, props map[string]any, out, in graph.VertexHandle) (*graph.Edge, error) {
	edge, err := graph.NewEdge(id, label, out, in, props)
	if err != nil {
		return nil, err
	}

	cfg := h.settings.Load()
	record := repository.Record{ID: edge.ID(), Label: edge.Label(), Fields: edge.Fields()}
	if err := h.client.Create(ctx, cfg.Index, record, cfg.Visibility); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.EdgeAlreadyExists(id)
		}
		return nil, apperrors.BackendUnavailable("create", cfg.Index, err)
	}

	h.logger.Debug("Edge created",
		zap.String("index", cfg.Index),
		zap.String("id", id),
		zap.String("label", label),
	)
	return edge, nil
}
