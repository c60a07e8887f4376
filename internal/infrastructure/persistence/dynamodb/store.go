// Package dynamodb implements the document client over Amazon DynamoDB.
// Each index maps to one table keyed by the "_id" string attribute; fields
// are stored as top-level attributes and filters run server-side as scan
// filter expressions.
package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// maxBatchGetKeys is the BatchGetItem request limit.
const maxBatchGetKeys = 100

// DBClient is the subset of the DynamoDB API the store uses.
type DBClient interface {
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Options configures a Store.
type Options struct {
	// TablePrefix is prepended to the index name to form the table name.
	TablePrefix string
	// MaxBatchRetries bounds how often unprocessed lookup keys are resent.
	MaxBatchRetries int
	// BatchRetryDelay is the base delay between unprocessed-key retries.
	BatchRetryDelay time.Duration
}

// DefaultOptions returns the defaults used by the service.
func DefaultOptions() Options {
	return Options{MaxBatchRetries: 3, BatchRetryDelay: 100 * time.Millisecond}
}

// Store is a DocumentClient over DynamoDB. Scroll cursors are stateless
// encodings of the scan's LastEvaluatedKey. Refresh visibility maps to
// strongly consistent reads.
type Store struct {
	client DBClient
	opts   Options
	logger *zap.Logger
}

// NewStore wraps client.
func NewStore(client DBClient, opts Options, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, opts: opts, logger: logger}
}

// NewClient builds a DynamoDB client from the default AWS credential chain.
// A non-empty endpoint targets DynamoDB Local or another compatible server.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (s *Store) table(index string) string {
	return s.opts.TablePrefix + index
}

func consistent(v repository.Visibility) *bool {
	return aws.Bool(v == repository.VisibilityRefresh)
}

// ============================================================================
// LOOKUP
// ============================================================================

// LookupMany fetches ids with BatchGetItem, chunked to the request limit.
// Unprocessed keys are retried; keys still unprocessed after the retry
// budget fail the lookup rather than being reported as missing.
func (s *Store) LookupMany(ctx context.Context, index string, ids []string, visibility repository.Visibility) ([]repository.Record, error) {
	table := s.table(index)
	out := make([]repository.Record, 0, len(ids))
	for start := 0; start < len(ids); start += maxBatchGetKeys {
		end := min(start+maxBatchGetKeys, len(ids))
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, keyOf(id))
		}
		records, err := s.batchGet(ctx, table, keys, visibility)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

func (s *Store) batchGet(ctx context.Context, table string, keys []map[string]types.AttributeValue, visibility repository.Visibility) ([]repository.Record, error) {
	input := &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			table: {Keys: keys, ConsistentRead: consistent(visibility)},
		},
	}

	var out []repository.Record
	for attempt := 0; ; attempt++ {
		output, err := s.client.BatchGetItem(ctx, input)
		if err != nil {
			return nil, apperrors.FromBackendError(err, "dynamodb.batch_get_item", table)
		}
		for _, item := range output.Responses[table] {
			rec, err := fromItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}

		pending := output.UnprocessedKeys[table]
		if len(pending.Keys) == 0 {
			return out, nil
		}
		if attempt >= s.opts.MaxBatchRetries {
			return nil, apperrors.FromBackendError(
				fmt.Errorf("%d keys still unprocessed after %d retries", len(pending.Keys), attempt),
				"dynamodb.batch_get_item", table)
		}
		s.logger.Debug("Retrying unprocessed keys",
			zap.String("table", table),
			zap.Int("unprocessed", len(pending.Keys)),
			zap.Int("attempt", attempt+1),
		)
		if err := sleep(ctx, s.opts.BatchRetryDelay*time.Duration(1<<attempt)); err != nil {
			return nil, apperrors.FromBackendError(err, "dynamodb.batch_get_item", table)
		}
		input.RequestItems = map[string]types.KeysAndAttributes{table: pending}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ============================================================================
// SEARCH
// ============================================================================

// scanInput builds the filtered scan shared by Search and Aggregate.
func (s *Store) scanInput(table string, f filter.Filter, visibility repository.Visibility) (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(table),
		ConsistentRead: consistent(visibility),
	}
	cond, ok, err := Condition(f)
	if err != nil {
		return nil, err
	}
	if ok {
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("build filter expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}
	return input, nil
}

// Search returns one page of matches. DynamoDB applies Limit before the
// filter, so the store keeps scanning with Limit set to the number of
// matches still needed; every evaluated item then matched, and the final
// LastEvaluatedKey is exactly the last returned record.
func (s *Store) Search(ctx context.Context, req repository.SearchRequest) (repository.SearchPage, error) {
	if req.PageSize <= 0 {
		return repository.SearchPage{}, fmt.Errorf("page size must be positive, got %d", req.PageSize)
	}
	table := s.table(req.Index)
	input, err := s.scanInput(table, req.Filter, req.Visibility)
	if err != nil {
		return repository.SearchPage{}, err
	}

	skip := req.Offset
	if req.Cursor != "" {
		start, err := decodeKey(req.Cursor)
		if err != nil {
			return repository.SearchPage{}, err
		}
		input.ExclusiveStartKey = start
		skip = 0
	}

	need := skip + req.PageSize
	var items []map[string]types.AttributeValue
	var last map[string]types.AttributeValue
	for {
		input.Limit = aws.Int32(int32(need - len(items)))
		output, err := s.client.Scan(ctx, input)
		if err != nil {
			return repository.SearchPage{}, apperrors.FromBackendError(err, "dynamodb.scan", table)
		}
		items = append(items, output.Items...)
		last = output.LastEvaluatedKey
		if len(last) == 0 || len(items) >= need {
			break
		}
		input.ExclusiveStartKey = last
	}

	page := repository.SearchPage{}
	if skip < len(items) {
		for _, item := range items[skip:] {
			rec, err := fromItem(item)
			if err != nil {
				return repository.SearchPage{}, err
			}
			page.Records = append(page.Records, rec)
		}
	}
	if len(last) > 0 {
		cursor, err := encodeKey(last)
		if err != nil {
			return repository.SearchPage{}, err
		}
		page.HasMore = true
		page.Cursor = cursor
	}
	return page, nil
}

// ============================================================================
// CREATE
// ============================================================================

// Create puts the record guarded by attribute_not_exists on the key.
// DynamoDB writes are durable on acknowledgement, so visibility only
// affects reads.
func (s *Store) Create(ctx context.Context, index string, record repository.Record, _ repository.Visibility) error {
	table := s.table(index)
	item, err := toItem(record)
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(graph.FieldID))).
		Build()
	if err != nil {
		return fmt.Errorf("build condition expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(table),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if apperrors.IsConditionFailure(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return apperrors.FromBackendError(err, "dynamodb.put_item", table)
	}
	return nil
}

// ============================================================================
// AGGREGATE
// ============================================================================

// Aggregate scans every match and folds it into an accumulator. DynamoDB has
// no server-side grouping, so this is the one place the store reads a whole
// result set.
func (s *Store) Aggregate(ctx context.Context, index string, f filter.Filter, spec aggregation.Spec, visibility repository.Visibility) (map[string]any, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	table := s.table(index)
	input, err := s.scanInput(table, f, visibility)
	if err != nil {
		return nil, err
	}

	acc := aggregation.NewAccumulator(spec)
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperrors.FromBackendError(err, "dynamodb.scan", table)
		}
		for _, item := range output.Items {
			doc, err := toDocument(item)
			if err != nil {
				return nil, err
			}
			acc.Add(doc)
		}
	}
	return acc.Result(), nil
}

var (
	_ repository.DocumentClient = (*Store)(nil)
	_ DBClient                  = (*dynamodb.Client)(nil)
)
