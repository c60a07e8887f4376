// Package mocks provides testify mocks of the repository ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// DocumentClient is a mock of repository.DocumentClient that also
// implements repository.CursorReleaser.
type DocumentClient struct {
	mock.Mock
}

func (m *DocumentClient) LookupMany(ctx context.Context, index string, ids []string, visibility repository.Visibility) ([]repository.Record, error) {
	args := m.Called(ctx, index, ids, visibility)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.Record), args.Error(1)
}

func (m *DocumentClient) Search(ctx context.Context, req repository.SearchRequest) (repository.SearchPage, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(repository.SearchPage), args.Error(1)
}

func (m *DocumentClient) Create(ctx context.Context, index string, record repository.Record, visibility repository.Visibility) error {
	args := m.Called(ctx, index, record, visibility)
	return args.Error(0)
}

func (m *DocumentClient) Aggregate(ctx context.Context, index string, f filter.Filter, spec aggregation.Spec, visibility repository.Visibility) (map[string]any, error) {
	args := m.Called(ctx, index, f, spec, visibility)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *DocumentClient) ReleaseCursor(ctx context.Context, cursor string) error {
	args := m.Called(ctx, cursor)
	return args.Error(0)
}

var (
	_ repository.DocumentClient = (*DocumentClient)(nil)
	_ repository.CursorReleaser = (*DocumentClient)(nil)
)
