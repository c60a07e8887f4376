package dynamodb

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// ============================================================================
// MOCK CLIENT
// ============================================================================

type mockDB struct {
	mock.Mock
}

func (m *mockDB) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.BatchGetItemOutput)
	return out, args.Error(1)
}

func (m *mockDB) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}

func (m *mockDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func item(t *testing.T, id, group string) map[string]types.AttributeValue {
	t.Helper()
	it, err := toItem(repository.Record{ID: id, Label: "knows", Fields: map[string]any{
		graph.FieldOutID: "v0", graph.FieldOutLabel: "person",
		graph.FieldInID: "v-" + id, graph.FieldInLabel: "person",
		"group": group, "weight": 2,
	}})
	require.NoError(t, err)
	return it
}

func newTestStore(db DBClient) *Store {
	return NewStore(db, Options{TablePrefix: "test-", MaxBatchRetries: 2}, nil)
}

func limitIs(n int32) any {
	return mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.Limit != nil && *in.Limit == n
	})
}

// ============================================================================
// FILTER TRANSLATION
// ============================================================================

func TestCondition(t *testing.T) {
	_, ok, err := Condition(filter.MatchAll())
	require.NoError(t, err)
	assert.False(t, ok, "match-all needs no expression")

	tests := []struct {
		name   string
		filter filter.Filter
		want   []string
	}{
		{"terms many", filter.Terms{Field: "group", Values: []any{"a", "b"}}, []string{"IN"}},
		{"terms none", filter.Terms{Field: "group"}, []string{"attribute_not_exists"}},
		{"empty or", filter.Or{}, []string{"attribute_not_exists"}},
		{"prefix", filter.Prefix{Field: "name", Value: "jo"}, []string{"begins_with"}},
		{"contains", filter.Contains{Field: "tags", Value: "go"}, []string{"contains"}},
		{"exists", filter.Exists{Field: graph.FieldInID}, []string{"attribute_exists"}},
		{"not", filter.Not{Filter: filter.Terms{Field: "group", Values: []any{"a"}}}, []string{"NOT"}},
		{"range", filter.Range{Field: "weight", Lower: filter.Bound{Value: 1, Inclusive: true}, Upper: filter.Bound{Value: 5}}, []string{">=", "<", "AND"}},
		{"nested", filter.And{Filters: []filter.Filter{
			filter.Or{Filters: []filter.Filter{
				filter.Terms{Field: graph.FieldInID, Values: []any{"v1"}},
				filter.Terms{Field: graph.FieldOutID, Values: []any{"v1"}},
			}},
			filter.And{},
		}}, []string{"OR", "AND", "attribute_exists"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, ok, err := Condition(tt.filter)
			require.NoError(t, err)
			require.True(t, ok)

			expr, err := expression.NewBuilder().WithFilter(cond).Build()
			require.NoError(t, err)
			for _, fragment := range tt.want {
				assert.Contains(t, *expr.Filter(), fragment)
			}
		})
	}
}

func TestCondition_ContainsRejectsNonString(t *testing.T) {
	_, _, err := Condition(filter.Contains{Field: "tags", Value: 7})

	assert.True(t, apperrors.IsUnsupportedPredicate(err))
}

func TestCondition_SplitsLongInLists(t *testing.T) {
	values := make([]any, 150)
	for i := range values {
		values[i] = fmt.Sprintf("e%d", i)
	}

	cond, ok, err := Condition(filter.Terms{Field: graph.FieldID, Values: values})
	require.NoError(t, err)
	require.True(t, ok)

	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	require.NoError(t, err)
	assert.Len(t, expr.Values(), 150)
	groups := strings.Split(*expr.Filter(), " IN ")
	require.Len(t, groups, 3, "two IN groups expected")
	assert.Contains(t, *expr.Filter(), "OR")
	for _, g := range groups[1:] {
		operands := strings.SplitN(g, ")", 2)[0]
		assert.LessOrEqual(t, strings.Count(operands, ":"), maxInOperands)
	}
}

func TestSearch_ManyIDsStayWithinInLimit(t *testing.T) {
	ctx := context.Background()
	ids := make([]any, 150)
	for i := range ids {
		ids[i] = fmt.Sprintf("e%d", i)
	}
	db := new(mockDB)
	db.On("Scan", ctx, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.FilterExpression != nil && strings.Count(*in.FilterExpression, " IN ") == 2
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{item(t, "e7", "a")},
	}, nil).Once()

	page, err := newTestStore(db).Search(ctx, repository.SearchRequest{
		Index:    "edges",
		Filter:   filter.Terms{Field: graph.FieldID, Values: ids},
		PageSize: 10,
	})

	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "e7", page.Records[0].ID)
	assert.False(t, page.HasMore)
	db.AssertExpectations(t)
}

// ============================================================================
// SEARCH
// ============================================================================

func TestSearch_ScansUntilPageFilled(t *testing.T) {
	ctx := context.Background()
	db := new(mockDB)
	db.On("Scan", ctx, limitIs(2)).Return(&dynamodb.ScanOutput{
		Items:            []map[string]types.AttributeValue{item(t, "e1", "a")},
		LastEvaluatedKey: keyOf("e3"),
	}, nil).Once()
	db.On("Scan", ctx, limitIs(1)).Return(&dynamodb.ScanOutput{
		Items:            []map[string]types.AttributeValue{item(t, "e4", "a")},
		LastEvaluatedKey: keyOf("e4"),
	}, nil).Once()

	page, err := newTestStore(db).Search(ctx, repository.SearchRequest{
		Index:      "edges",
		Filter:     filter.Terms{Field: "group", Values: []any{"a"}},
		PageSize:   2,
		Visibility: repository.VisibilityRefresh,
	})

	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "e1", page.Records[0].ID)
	assert.Equal(t, "e4", page.Records[1].ID)
	assert.Equal(t, "v-e4", page.Records[1].Fields[graph.FieldInID])
	assert.True(t, page.HasMore)

	start, err := decodeKey(page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, keyOf("e4"), start)

	second := db.Calls[1].Arguments.Get(1).(*dynamodb.ScanInput)
	assert.Equal(t, keyOf("e3"), second.ExclusiveStartKey)
	assert.Equal(t, "test-edges", *second.TableName)
	assert.True(t, *second.ConsistentRead)
	assert.NotNil(t, second.FilterExpression)
	db.AssertExpectations(t)
}

func TestSearch_ResumesFromCursorAndSkipsOffsetOnce(t *testing.T) {
	ctx := context.Background()
	db := new(mockDB)
	db.On("Scan", ctx, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil && *in.Limit == 2 && in.FilterExpression == nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{item(t, "e5", "b")},
	}, nil).Once()

	cursor, err := encodeKey(keyOf("e4"))
	require.NoError(t, err)

	page, err := newTestStore(db).Search(ctx, repository.SearchRequest{
		Index: "edges", Filter: filter.MatchAll(), Offset: 7, PageSize: 2, Cursor: cursor,
	})

	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.Cursor)
	db.AssertExpectations(t)
}

func TestSearch_Offset(t *testing.T) {
	ctx := context.Background()
	db := new(mockDB)
	db.On("Scan", ctx, limitIs(3)).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{item(t, "e1", "a"), item(t, "e2", "a")},
	}, nil).Once()

	page, err := newTestStore(db).Search(ctx, repository.SearchRequest{Index: "edges", Offset: 1, PageSize: 2})

	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "e2", page.Records[0].ID)
}

func TestSearch_BackendFailure(t *testing.T) {
	ctx := context.Background()
	db := new(mockDB)
	db.On("Scan", ctx, mock.Anything).Return(nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}).Once()

	_, err := newTestStore(db).Search(ctx, repository.SearchRequest{Index: "edges", PageSize: 2})

	assert.True(t, apperrors.IsBackendUnavailable(err))
	assert.True(t, apperrors.IsRetryable(err))
}

// ============================================================================
// LOOKUP
// ============================================================================

func TestLookupMany_RetriesUnprocessedKeys(t *testing.T) {
	ctx := context.Background()
	db := new(mockDB)
	db.On("BatchGetItem", ctx, mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
		return len(in.RequestItems["test-edges"].Keys) == 2
	})).Return(&dynamodb.BatchGetItemOutput{
		Responses: map[string][]map[string]types.AttributeValue{"test-edges": {item(t, "e1", "a")}},
		UnprocessedKeys: map[string]types.KeysAndAttributes{
			"test-edges": {Keys: []map[string]types.AttributeValue{keyOf("e2")}},
		},
	}, nil).Once()
	db.On("BatchGetItem", ctx, mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
		return len(in.RequestItems["test-edges"].Keys) == 1
	})).Return(&dynamodb.BatchGetItemOutput{
		Responses: map[string][]map[string]types.AttributeValue{"test-edges": {item(t, "e2", "a")}},
	}, nil).Once()

	store := NewStore(db, Options{TablePrefix: "test-", MaxBatchRetries: 2}, nil)
	got, err := store.LookupMany(ctx, "edges", []string{"e1", "e2"}, repository.VisibilityCommitted)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "knows", got[1].Label)
	first := db.Calls[0].Arguments.Get(1).(*dynamodb.BatchGetItemInput)
	assert.False(t, aws.ToBool(first.RequestItems["test-edges"].ConsistentRead))
	db.AssertExpectations(t)
}

func TestLookupMany_UnprocessedAfterRetriesFails(t *testing.T) {
	ctx := context.Background()
	db := new(mockDB)
	db.On("BatchGetItem", ctx, mock.Anything).Return(&dynamodb.BatchGetItemOutput{
		UnprocessedKeys: map[string]types.KeysAndAttributes{
			"test-edges": {Keys: []map[string]types.AttributeValue{keyOf("e1")}},
		},
	}, nil)

	_, err := newTestStore(db).LookupMany(ctx, "edges", []string{"e1"}, repository.VisibilityRefresh)

	assert.True(t, apperrors.IsBackendUnavailable(err))
	db.AssertNumberOfCalls(t, "BatchGetItem", 3)
}

func TestLookupMany_Chunks(t *testing.T) {
	ctx := context.Background()
	db := new(mockDB)
	db.On("BatchGetItem", ctx, mock.Anything).Return(&dynamodb.BatchGetItemOutput{}, nil)
	ids := make([]string, 150)
	for i := range ids {
		ids[i] = "e" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	got, err := newTestStore(db).LookupMany(ctx, "edges", ids, repository.VisibilityCommitted)

	require.NoError(t, err)
	assert.Empty(t, got)
	db.AssertNumberOfCalls(t, "BatchGetItem", 2)
}

// ============================================================================
// CREATE AND AGGREGATE
// ============================================================================

func TestCreate(t *testing.T) {
	ctx := context.Background()
	rec := repository.Record{ID: "e1", Label: "knows", Fields: map[string]any{graph.FieldInID: "v2"}}

	t.Run("conditional put", func(t *testing.T) {
		db := new(mockDB)
		db.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			return *in.TableName == "test-edges" && in.ConditionExpression != nil && in.Item[graph.FieldID] != nil
		})).Return(&dynamodb.PutItemOutput{}, nil).Once()

		require.NoError(t, newTestStore(db).Create(ctx, "edges", rec, repository.VisibilityRefresh))
		db.AssertExpectations(t)
	})

	t.Run("existing id conflicts", func(t *testing.T) {
		db := new(mockDB)
		db.On("PutItem", ctx, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{}).Once()

		err := newTestStore(db).Create(ctx, "edges", rec, repository.VisibilityRefresh)
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("other failures are backend errors", func(t *testing.T) {
		db := new(mockDB)
		db.On("PutItem", ctx, mock.Anything).Return(nil, &smithy.GenericAPIError{Code: "ValidationException"}).Once()

		err := newTestStore(db).Create(ctx, "edges", rec, repository.VisibilityRefresh)
		assert.True(t, apperrors.IsBackendUnavailable(err))
		assert.False(t, apperrors.IsRetryable(err))
	})
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	db := new(mockDB)
	db.On("Scan", ctx, mock.MatchedBy(func(in *dynamodb.ScanInput) bool { return in.ExclusiveStartKey == nil })).
		Return(&dynamodb.ScanOutput{
			Items:            []map[string]types.AttributeValue{item(t, "e1", "a"), item(t, "e2", "b")},
			LastEvaluatedKey: keyOf("e2"),
		}, nil).Once()
	db.On("Scan", ctx, mock.MatchedBy(func(in *dynamodb.ScanInput) bool { return in.ExclusiveStartKey != nil })).
		Return(&dynamodb.ScanOutput{
			Items: []map[string]types.AttributeValue{item(t, "e3", "a"), item(t, "e4", "a")},
		}, nil).Once()

	got, err := newTestStore(db).Aggregate(ctx, "edges", filter.MatchAll(),
		aggregation.Spec{GroupBy: "group", Value: "weight", Reducer: aggregation.ReduceSum}, repository.VisibilityCommitted)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 6.0, "b": 2.0}, got)
	db.AssertExpectations(t)
}

func TestAggregate_InvalidSpec(t *testing.T) {
	db := new(mockDB)

	_, err := newTestStore(db).Aggregate(context.Background(), "edges", nil, aggregation.Spec{GroupBy: "group", Reducer: "median"}, repository.VisibilityCommitted)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnsupportedAggregation))
	db.AssertNotCalled(t, "Scan", mock.Anything, mock.Anything)
}
