package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qms-data/internal/domain"
)

// Replacement one collection swap for Store.ReplaceAll.
type Replacement struct {
	Collection string
	Count      int

	inTx     func(ctx context.Context, tx *sql.Tx) error // Postgres repositories
	stage    func() (func(), error)                      // memory repositories
	snapshot func(ctx context.Context) ([]any, error)
	apply    func(ctx context.Context) error
	restore  func(ctx context.Context, prev []any) error
}

// Replace prepares replacing repo's contents with recs.
func Replace[T domain.Record](collection string, repo Repository[T], recs []T) Replacement {
	rep := Replacement{
		Collection: collection,
		Count:      len(recs),
		snapshot: func(ctx context.Context) ([]any, error) {
			prev, err := repo.All(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]any, len(prev))
			for i := range prev {
				out[i] = prev[i]
			}
			return out, nil
		},
		apply: func(ctx context.Context) error { return repo.ReplaceAll(ctx, recs) },
		restore: func(ctx context.Context, prev []any) error {
			old := make([]T, 0, len(prev))
			for _, p := range prev {
				old = append(old, p.(T))
			}
			return repo.ReplaceAll(ctx, old)
		},
	}
	switch r := repo.(type) {
	case *PostgresRepository[T]:
		rep.inTx = func(ctx context.Context, tx *sql.Tx) error { return r.replaceTx(ctx, tx, recs) }
	case *MemoryRepository[T]:
		rep.stage = func() (func(), error) { return r.stage(recs) }
	}
	return rep
}

// ReplaceAll swaps several collections as one unit: every replacement lands
// or the store keeps its previous contents.
func (s *Store) ReplaceAll(ctx context.Context, reps ...Replacement) error {
	switch {
	case s.db != nil && every(reps, func(r Replacement) bool { return r.inTx != nil }):
		return s.replaceTx(ctx, reps)
	case every(reps, func(r Replacement) bool { return r.stage != nil }):
		return replaceStaged(reps)
	default:
		return replaceWithRollback(ctx, reps)
	}
}

func (s *Store) replaceTx(ctx context.Context, reps []Replacement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rep := range reps {
		if err := rep.inTx(ctx, tx); err != nil {
			return fmt.Errorf("failed to replace %s: %w", rep.Collection, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

func replaceStaged(reps []Replacement) error {
	swaps := make([]func(), 0, len(reps))
	for _, rep := range reps {
		swap, err := rep.stage()
		if err != nil {
			return fmt.Errorf("failed to replace %s: %w", rep.Collection, err)
		}
		swaps = append(swaps, swap)
	}
	for _, swap := range swaps {
		swap()
	}
	return nil
}

// replaceWithRollback for repositories without a native unit of work: the
// collections already replaced are restored from a snapshot on failure.
func replaceWithRollback(ctx context.Context, reps []Replacement) error {
	snapshots := make([][]any, len(reps))
	for i, rep := range reps {
		prev, err := rep.snapshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", rep.Collection, err)
		}
		snapshots[i] = prev
	}
	for i, rep := range reps {
		if err := rep.apply(ctx); err != nil {
			err = fmt.Errorf("failed to replace %s: %w", rep.Collection, err)
			for j := i - 1; j >= 0; j-- {
				if rerr := reps[j].restore(ctx, snapshots[j]); rerr != nil {
					err = errors.Join(err, fmt.Errorf("failed to restore %s: %w", reps[j].Collection, rerr))
				}
			}
			return err
		}
	}
	return nil
}

func every(reps []Replacement, ok func(Replacement) bool) bool {
	for _, r := range reps {
		if !ok(r) {
			return false
		}
	}
	return true
}
