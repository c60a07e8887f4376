// Package memory provides an in-process document backend with
// near-real-time search semantics and server-side scroll cursors.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/ozadari/unipop/internal/domain/graph"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// DefaultCursorTTL is how long an idle scroll cursor is kept.
const DefaultCursorTTL = 5 * time.Minute

// Store is an in-memory DocumentClient. Documents are kept per index in a
// B-tree ordered by identifier. Writes made with committed visibility are
// buffered until the next refresh, mirroring a search engine's refresh
// interval; refresh-visibility requests refresh the index first.
type Store struct {
	mu      sync.RWMutex
	indices map[string]*index
	cursors map[string]*cursor
	ttl     time.Duration
	now     func() time.Time
}

type index struct {
	committed *btree.BTreeG[repository.Record]
	pending   map[string]repository.Record
}

// cursor pins a point-in-time snapshot of an index.
type cursor struct {
	snapshot *btree.BTreeG[repository.Record]
	filter   filter.Filter
	lastID   string
	lastUsed time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCursorTTL overrides DefaultCursorTTL.
func WithCursorTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the time source used for cursor expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		indices: make(map[string]*index),
		cursors: make(map[string]*cursor),
		ttl:     DefaultCursorTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func byID(a, b repository.Record) bool { return a.ID < b.ID }

func newIndex() *index {
	return &index{
		committed: btree.NewBTreeG(byID),
		pending:   make(map[string]repository.Record),
	}
}

// indexFor returns the named index, creating it. Callers hold the write lock.
func (s *Store) indexFor(name string) *index {
	idx, ok := s.indices[name]
	if !ok {
		idx = newIndex()
		s.indices[name] = idx
	}
	return idx
}

// Refresh makes every buffered write of the index searchable.
func (s *Store) Refresh(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked(name)
}

func (s *Store) refreshLocked(name string) {
	idx, ok := s.indices[name]
	if !ok {
		return
	}
	for id, rec := range idx.pending {
		idx.committed.Set(rec)
		delete(idx.pending, id)
	}
}

// view returns a copy-on-write snapshot of the committed documents,
// refreshing first when visibility asks for it. Copying marks the source
// tree, so it needs the write lock.
func (s *Store) view(name string, visibility repository.Visibility) *btree.BTreeG[repository.Record] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if visibility == repository.VisibilityRefresh {
		s.refreshLocked(name)
	}
	idx, ok := s.indices[name]
	if !ok {
		return btree.NewBTreeG(byID)
	}
	return idx.committed.Copy()
}

// LookupMany returns the visible documents among ids.
func (s *Store) LookupMany(ctx context.Context, name string, ids []string, visibility repository.Visibility) ([]repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree := s.view(name, visibility)
	out := make([]repository.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := tree.Get(repository.Record{ID: id}); ok {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

// Search returns one page of matches in identifier order. A new search pins
// a snapshot behind a cursor so later pages are not affected by concurrent
// writes; the cursor is dropped once the last page is served.
func (s *Store) Search(ctx context.Context, req repository.SearchRequest) (repository.SearchPage, error) {
	if err := ctx.Err(); err != nil {
		return repository.SearchPage{}, err
	}
	if req.PageSize <= 0 {
		return repository.SearchPage{}, fmt.Errorf("page size must be positive, got %d", req.PageSize)
	}

	var (
		cur  *cursor
		id   string
		skip int
	)
	if req.Cursor != "" {
		var err error
		if cur, err = s.takeCursor(req.Cursor); err != nil {
			return repository.SearchPage{}, err
		}
		id = req.Cursor
	} else {
		f := req.Filter
		if f == nil {
			f = filter.MatchAll()
		}
		cur = &cursor{snapshot: s.view(req.Index, req.Visibility), filter: f}
		skip = req.Offset
	}

	records, more := scan(cur, skip, req.PageSize)
	if !more {
		if id != "" {
			s.dropCursor(id)
		}
		return repository.SearchPage{Records: records}, nil
	}

	if id == "" {
		id = uuid.NewString()
	}
	s.putCursor(id, cur)
	return repository.SearchPage{Records: records, HasMore: true, Cursor: id}, nil
}

// scan collects up to size matches after cur.lastID, skipping the first skip
// matches, and reports whether another match exists beyond the page.
func scan(cur *cursor, skip, size int) ([]repository.Record, bool) {
	out := make([]repository.Record, 0, size)
	more := false
	visit := func(rec repository.Record) bool {
		if rec.ID == cur.lastID && cur.lastID != "" {
			return true
		}
		if !filter.Match(cur.filter, rec.Document(graph.FieldID, graph.FieldLabel)) {
			return true
		}
		if skip > 0 {
			skip--
			return true
		}
		if len(out) == size {
			more = true
			return false
		}
		out = append(out, clone(rec))
		cur.lastID = rec.ID
		return true
	}
	if cur.lastID == "" {
		cur.snapshot.Scan(visit)
	} else {
		cur.snapshot.Ascend(repository.Record{ID: cur.lastID}, visit)
	}
	return out, more
}

// Create stores a new document. Identifiers are unique across committed and
// buffered writes.
func (s *Store) Create(ctx context.Context, name string, record repository.Record, visibility repository.Visibility) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexFor(name)
	if _, ok := idx.pending[record.ID]; ok {
		return repository.ErrConflict
	}
	if _, ok := idx.committed.Get(repository.Record{ID: record.ID}); ok {
		return repository.ErrConflict
	}
	idx.pending[record.ID] = clone(record)
	if visibility == repository.VisibilityRefresh {
		s.refreshLocked(name)
	}
	return nil
}

// Aggregate folds every visible match through an aggregation.Accumulator.
func (s *Store) Aggregate(ctx context.Context, name string, f filter.Filter, spec aggregation.Spec, visibility repository.Visibility) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if f == nil {
		f = filter.MatchAll()
	}
	acc := aggregation.NewAccumulator(spec)
	s.view(name, visibility).Scan(func(rec repository.Record) bool {
		doc := rec.Document(graph.FieldID, graph.FieldLabel)
		if filter.Match(f, doc) {
			acc.Add(doc)
		}
		return true
	})
	return acc.Result(), nil
}

// ReleaseCursor drops a scroll cursor. Unknown cursors are ignored.
func (s *Store) ReleaseCursor(_ context.Context, id string) error {
	s.dropCursor(id)
	return nil
}

// OpenCursors reports how many scroll cursors are live.
func (s *Store) OpenCursors() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cursors)
}

// ExpireCursors drops cursors idle for longer than the TTL.
func (s *Store) ExpireCursors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	expired := 0
	for id, c := range s.cursors {
		if now.Sub(c.lastUsed) > s.ttl {
			delete(s.cursors, id)
			expired++
		}
	}
	return expired
}

func (s *Store) takeCursor(id string) (*cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[id]
	if !ok || s.now().Sub(c.lastUsed) > s.ttl {
		delete(s.cursors, id)
		return nil, fmt.Errorf("scroll cursor %s not found or expired", id)
	}
	return c, nil
}

func (s *Store) putCursor(id string, c *cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.lastUsed = s.now()
	s.cursors[id] = c
}

func (s *Store) dropCursor(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, id)
}

func clone(rec repository.Record) repository.Record {
	fields := make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = v
	}
	rec.Fields = fields
	return rec
}

var (
	_ repository.DocumentClient = (*Store)(nil)
	_ repository.CursorReleaser = (*Store)(nil)
)
