//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/ozadari/unipop/internal/config"
)

// InitializeContainer creates a fully wired container. The returned cleanup
// releases resources in reverse order of construction.
func InitializeContainer(ctx context.Context, loader *config.Loader) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
