package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"qms-data/internal/domain"
)

// MemoryRepository keeps a collection in process memory.
// Records are deep-copied on the way in and out so callers never share state
// with the store.
type MemoryRepository[T domain.Record] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewMemoryRepository[T domain.Record]() *MemoryRepository[T] {
	return &MemoryRepository[T]{items: map[string]T{}}
}

var _ Repository[domain.Document] = (*MemoryRepository[domain.Document])(nil)

func (r *MemoryRepository[T]) Get(_ context.Context, id string) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", domain.ErrNotFound, id)
	}
	out, err := clone(rec)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *MemoryRepository[T]) List(_ context.Context, filter Filter, page, size int) ([]T, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]T, 0, len(r.items))
	for _, rec := range r.items {
		if filter.Matches(rec) {
			all = append(all, rec)
		}
	}
	sortRecords(all)

	total := len(all)
	page, size = normalizePage(page, size)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	out, err := cloneAll(all[start:end])
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MemoryRepository[T]) All(_ context.Context) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]T, 0, len(r.items))
	for _, rec := range r.items {
		all = append(all, rec)
	}
	sortRecords(all)
	return cloneAll(all)
}

func (r *MemoryRepository[T]) Create(_ context.Context, rec T) error {
	id := rec.RecordID()
	if id == "" {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	cp, err := clone(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; ok {
		return fmt.Errorf("%w: id=%s already exists", domain.ErrConflict, id)
	}
	r.items[id] = cp
	return nil
}

func (r *MemoryRepository[T]) Update(_ context.Context, rec T) error {
	id := rec.RecordID()
	cp, err := clone(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("%w: id=%s", domain.ErrNotFound, id)
	}
	r.items[id] = cp
	return nil
}

func (r *MemoryRepository[T]) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("%w: id=%s", domain.ErrNotFound, id)
	}
	delete(r.items, id)
	return nil
}

// UpdateAll writes recs as one unit: if any id is unknown nothing changes.
func (r *MemoryRepository[T]) UpdateAll(_ context.Context, recs []T) error {
	copies, err := cloneAll(recs)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range copies {
		if _, ok := r.items[rec.RecordID()]; !ok {
			return fmt.Errorf("%w: id=%s", domain.ErrNotFound, rec.RecordID())
		}
	}
	for _, rec := range copies {
		r.items[rec.RecordID()] = rec
	}
	return nil
}

func (r *MemoryRepository[T]) ReplaceAll(_ context.Context, recs []T) error {
	swap, err := r.stage(recs)
	if err != nil {
		return err
	}
	swap()
	return nil
}

// stage copies recs up front; the returned swap cannot fail.
func (r *MemoryRepository[T]) stage(recs []T) (func(), error) {
	next := make(map[string]T, len(recs))
	for _, rec := range recs {
		if rec.RecordID() == "" {
			return nil, fmt.Errorf("%w: record without id", domain.ErrValidation)
		}
		cp, err := clone(rec)
		if err != nil {
			return nil, err
		}
		next[rec.RecordID()] = cp
	}
	return func() {
		r.mu.Lock()
		r.items = next
		r.mu.Unlock()
	}, nil
}

// sortRecords newest record date first, id as tie-break
func sortRecords[T domain.Record](recs []T) {
	sort.SliceStable(recs, func(i, j int) bool {
		di, dj := recs[i].RecordDate(), recs[j].RecordDate()
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return recs[i].RecordID() < recs[j].RecordID()
	})
}

func clone[T any](v T) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("failed to copy record: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("failed to copy record: %w", err)
	}
	return out, nil
}

func cloneAll[T any](in []T) ([]T, error) {
	out := make([]T, 0, len(in))
	for _, v := range in {
		cp, err := clone(v)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}
