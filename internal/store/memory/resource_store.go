package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
)

// Schema tells ResourceStore how to copy, search, filter and sort one kind of record.
type Schema[T models.Resource] struct {
	Clone  func(T) T
	Search func(T) []string              // Values matched by ListOptions.Search
	Attr   func(T, string) (string, bool) // Values used for filters and breakdowns
	Number func(T, string) (int, bool)    // Values used for sums
	Order  map[string]func(a, b T) int    // Extra sortable fields beyond created_at
}

// ResourceStore implements store.ResourceStore using in-memory storage.
// This implementation is for testing and local development - data is lost on restart.
type ResourceStore[T models.Resource] struct {
	mu sync.RWMutex

	schema  Schema[T]
	records map[int64]T
	nextID  int64
}

// NewResourceStore creates an empty store for one kind of record.
func NewResourceStore[T models.Resource](schema Schema[T]) *ResourceStore[T] {
	return &ResourceStore[T]{
		schema:  schema,
		records: make(map[int64]T),
	}
}

// Create assigns an ID and timestamps and stores a copy of rec.
func (s *ResourceStore[T]) Create(ctx context.Context, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(rec)
	return nil
}

func (s *ResourceStore[T]) insertLocked(rec T) {
	s.nextID++
	now := time.Now().UTC()

	base := rec.Base()
	base.ID = s.nextID
	base.CreatedAt = now
	base.UpdatedAt = now

	// Clone to avoid external modifications
	s.records[base.ID] = s.schema.Clone(rec)
}

// Get retrieves a record by ID.
func (s *ResourceStore[T]) Get(ctx context.Context, id int64) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		var zero T
		return zero, store.ErrNotFound
	}

	return s.schema.Clone(rec), nil
}

// Update replaces the stored record, keeping its owner and creation time.
func (s *ResourceStore[T]) Update(ctx context.Context, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := rec.Base()
	existing, exists := s.records[base.ID]
	if !exists {
		return store.ErrNotFound
	}

	base.OwnerID = existing.Base().OwnerID
	base.CreatedAt = existing.Base().CreatedAt
	base.UpdatedAt = time.Now().UTC()

	s.records[base.ID] = s.schema.Clone(rec)
	return nil
}

// Delete removes a record by ID.
func (s *ResourceStore[T]) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return store.ErrNotFound
	}

	delete(s.records, id)
	return nil
}

// List filters, sorts and pages the stored records.
func (s *ResourceStore[T]) List(ctx context.Context, opts store.ListOptions) ([]T, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.filterLocked(func(rec T) bool { return s.matches(rec, opts) })
	slices.SortFunc(matches, s.comparator(opts.Ordering))

	total := len(matches)
	page := paginate(matches, opts.Offset, opts.Limit)

	result := make([]T, len(page))
	for i, rec := range page {
		result[i] = s.schema.Clone(rec)
	}
	return result, total, nil
}

// Stats counts records by the requested fields.
func (s *ResourceStore[T]) Stats(ctx context.Context, opts store.StatsOptions) (*store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &store.Stats{
		Total:     len(s.records),
		Breakdown: make(map[string]map[string]int, len(opts.GroupBy)),
		Sums:      make(map[string]int, len(opts.Sum)),
	}
	for _, field := range opts.GroupBy {
		stats.Breakdown[field] = make(map[string]int)
	}
	for _, field := range opts.Sum {
		stats.Sums[field] = 0
	}

	for _, rec := range s.records {
		for _, field := range opts.GroupBy {
			if value, ok := s.schema.Attr(rec, field); ok {
				stats.Breakdown[field][value]++
			}
		}
		for _, field := range opts.Sum {
			if s.schema.Number == nil {
				continue
			}
			if n, ok := s.schema.Number(rec, field); ok {
				stats.Sums[field] += n
			}
		}
	}

	return stats, nil
}

// filterLocked returns the records accepted by keep. Callers must hold mu.
func (s *ResourceStore[T]) filterLocked(keep func(T) bool) []T {
	var out []T
	for _, rec := range s.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *ResourceStore[T]) matches(rec T, opts store.ListOptions) bool {
	base := rec.Base()

	if opts.OwnerID != nil && (base.OwnerID == nil || *base.OwnerID != *opts.OwnerID) {
		return false
	}

	for field, want := range opts.Filters {
		got, ok := s.schema.Attr(rec, field)
		if !ok || got != want {
			return false
		}
	}

	if opts.Search != "" {
		needle := strings.ToLower(opts.Search)
		found := false
		for _, value := range s.schema.Search(rec) {
			if strings.Contains(strings.ToLower(value), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// comparator returns a sort function for an ordering such as "-created_at".
// Unknown fields fall back to newest first; ties are broken by ID.
func (s *ResourceStore[T]) comparator(ordering string) func(a, b T) int {
	field, desc := strings.CutPrefix(ordering, "-")

	byField, ok := s.schema.Order[field]
	if !ok {
		byField = func(a, b T) int { return a.Base().CreatedAt.Compare(b.Base().CreatedAt) }
		if field != "created_at" {
			desc = true
		}
	}

	return func(a, b T) int {
		c := byField(a, b)
		if c == 0 {
			c = cmp.Compare(a.Base().ID, b.Base().ID)
		}
		if desc {
			return -c
		}
		return c
	}
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
