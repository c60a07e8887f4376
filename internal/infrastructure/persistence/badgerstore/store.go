// Package badgerstore stores documents in an embedded Badger key-value store.
// Documents are msgpack-encoded under "doc/<index>/<id>" keys so a prefix
// iteration yields one index in identifier order.
package badgerstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// ErrStoreClosed is returned after Close.
var ErrStoreClosed = errors.New("badger store is closed")

// Options configures Open.
type Options struct {
	// Dir is the data directory; ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *zap.Logger
}

// Store is a DocumentClient over Badger. Badger reads are immediately
// consistent, so committed and refresh reads behave alike; refresh writes
// additionally sync the value log to disk. Scroll cursors are stateless.
type Store struct {
	db       *badger.DB
	inMemory bool
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// document is the stored value.
type document struct {
	Label  string         `msgpack:"l"`
	Fields map[string]any `msgpack:"f"`
}

// Open opens or creates a store.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bopts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	logger.Info("Badger store opened", zap.String("dir", opts.Dir), zap.Bool("in_memory", opts.InMemory))
	return &Store{db: db, inMemory: opts.InMemory, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) ensureOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// checkIndex rejects index names that would let one index's key range
// overlap another's.
func checkIndex(index string) error {
	if index == "" || strings.Contains(index, "/") {
		return apperrors.InvalidInput(fmt.Sprintf("index name %q must be non-empty and contain no '/'", index))
	}
	return nil
}

func prefix(index string) []byte {
	return []byte("doc/" + index + "/")
}

func key(index, id string) []byte {
	return append(prefix(index), id...)
}

func encode(rec repository.Record) ([]byte, error) {
	return msgpack.Marshal(document{Label: rec.Label, Fields: rec.Fields})
}

func decode(id string, val []byte) (repository.Record, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(val))
	dec.UseLooseInterfaceDecoding(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return repository.Record{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	return repository.Record{ID: id, Label: doc.Label, Fields: doc.Fields}, nil
}

func readItem(item *badger.Item, pfx []byte) (repository.Record, error) {
	id := string(item.Key()[len(pfx):])
	var rec repository.Record
	err := item.Value(func(val []byte) error {
		var err error
		rec, err = decode(id, val)
		return err
	})
	return rec, err
}

// LookupMany fetches the documents among ids within one read transaction.
func (s *Store) LookupMany(ctx context.Context, index string, ids []string, _ repository.Visibility) ([]repository.Record, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]repository.Record, 0, len(ids))
	pfx := prefix(index)
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(key(index, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			rec, err := readItem(item, pfx)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Search iterates the index in key order. The cursor encodes the last
// returned identifier; every page re-applies the request filter.
func (s *Store) Search(ctx context.Context, req repository.SearchRequest) (repository.SearchPage, error) {
	if err := s.ensureOpen(); err != nil {
		return repository.SearchPage{}, err
	}
	if err := checkIndex(req.Index); err != nil {
		return repository.SearchPage{}, err
	}
	if req.PageSize <= 0 {
		return repository.SearchPage{}, fmt.Errorf("page size must be positive, got %d", req.PageSize)
	}

	f := req.Filter
	if f == nil {
		f = filter.MatchAll()
	}
	var after string
	skip := req.Offset
	if req.Cursor != "" {
		if err := repository.DecodeCursor(req.Cursor, &after); err != nil {
			return repository.SearchPage{}, err
		}
		skip = 0
	}

	page := repository.SearchPage{Records: make([]repository.Record, 0, req.PageSize)}
	pfx := prefix(req.Index)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pfx
		it := txn.NewIterator(opts)
		defer it.Close()

		start := pfx
		if after != "" {
			start = key(req.Index, after)
		}
		for it.Seek(start); it.ValidForPrefix(pfx); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := readItem(it.Item(), pfx)
			if err != nil {
				return err
			}
			if rec.ID == after {
				continue
			}
			if !filter.Match(f, rec.Document(graph.FieldID, graph.FieldLabel)) {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			if len(page.Records) == req.PageSize {
				page.HasMore = true
				return nil
			}
			page.Records = append(page.Records, rec)
		}
		return nil
	})
	if err != nil {
		return repository.SearchPage{}, err
	}

	if page.HasMore {
		last := page.Records[len(page.Records)-1].ID
		cursor, err := repository.EncodeCursor(last)
		if err != nil {
			return repository.SearchPage{}, err
		}
		page.Cursor = cursor
	}
	return page, nil
}

// Create writes a new document if its key is absent.
func (s *Store) Create(ctx context.Context, index string, record repository.Record, visibility repository.Visibility) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := checkIndex(index); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	val, err := encode(record)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", record.ID, err)
	}

	k := key(index, record.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		if err == nil {
			return repository.ErrConflict
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(k, val)
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent transaction wrote the same key first.
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}

	if visibility == repository.VisibilityRefresh && !s.inMemory {
		if err := s.db.Sync(); err != nil {
			s.logger.Warn("Badger sync failed", zap.String("id", record.ID), zap.Error(err))
			return err
		}
	}
	return nil
}

// Aggregate streams the index through an aggregation.Accumulator.
func (s *Store) Aggregate(ctx context.Context, index string, f filter.Filter, spec aggregation.Spec, _ repository.Visibility) (map[string]any, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if f == nil {
		f = filter.MatchAll()
	}

	acc := aggregation.NewAccumulator(spec)
	pfx := prefix(index)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pfx
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := readItem(it.Item(), pfx)
			if err != nil {
				return err
			}
			doc := rec.Document(graph.FieldID, graph.FieldLabel)
			if filter.Match(f, doc) {
				acc.Add(doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc.Result(), nil
}

var _ repository.DocumentClient = (*Store)(nil)
