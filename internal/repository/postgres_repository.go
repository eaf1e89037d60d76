package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"qms-data/internal/domain"
)

// PostgresRepository stores a collection as JSONB rows in qms_records.
// record_date, status and search are denormalized from the payload so list
// filters run in SQL.
type PostgresRepository[T domain.Record] struct {
	db         *sql.DB
	collection string
}

func NewPostgresRepository[T domain.Record](db *sql.DB, collection string) *PostgresRepository[T] {
	return &PostgresRepository[T]{db: db, collection: collection}
}

var _ Repository[domain.NCRRecord] = (*PostgresRepository[domain.NCRRecord])(nil)

func (r *PostgresRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM qms_records WHERE collection = $1 AND id = $2`,
		r.collection, id,
	).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s id=%s", domain.ErrNotFound, r.collection, id)
		}
		return nil, fmt.Errorf("failed to query %s: %w", r.collection, err)
	}
	var rec T
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", r.collection, err)
	}
	return &rec, nil
}

// likeEscaper makes search a plain substring match, as in the memory store.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *PostgresRepository[T]) List(ctx context.Context, filter Filter, page, size int) ([]T, int, error) {
	where := []string{"collection = $1"}
	args := []any{r.collection}
	argN := 2

	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, filter.Status)
		argN++
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, fmt.Sprintf(`search ILIKE $%d ESCAPE '\'`, argN))
		args = append(args, "%"+likeEscaper.Replace(s)+"%")
		argN++
	}
	if !filter.Range.IsZero() {
		start, end, err := filter.Range.Bounds(time.UTC)
		if err != nil {
			return nil, 0, err
		}
		if !start.IsZero() {
			where = append(where, fmt.Sprintf("record_date >= $%d", argN))
			args = append(args, start)
			argN++
		}
		if !end.IsZero() {
			where = append(where, fmt.Sprintf("record_date < $%d", argN))
			args = append(args, end)
			argN++
		}
	}
	whereClause := "WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qms_records `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", r.collection, err)
	}

	page, size = normalizePage(page, size)
	query := `SELECT payload FROM qms_records ` + whereClause +
		fmt.Sprintf(` ORDER BY record_date DESC, id ASC LIMIT $%d OFFSET $%d`, argN, argN+1)
	args = append(args, size, (page-1)*size)

	out, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepository[T]) All(ctx context.Context) ([]T, error) {
	return r.query(ctx,
		`SELECT payload FROM qms_records WHERE collection = $1 ORDER BY record_date DESC, id ASC`,
		r.collection,
	)
}

func (r *PostgresRepository[T]) Create(ctx context.Context, rec T) error {
	if rec.RecordID() == "" {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	res, err := r.insert(ctx, r.db, rec, true)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s id=%s already exists", domain.ErrConflict, r.collection, rec.RecordID())
	}
	return nil
}

func (r *PostgresRepository[T]) Update(ctx context.Context, rec T) error {
	return r.update(ctx, r.db, rec)
}

// UpdateAll writes recs in one transaction: if any id is unknown nothing changes.
func (r *PostgresRepository[T]) UpdateAll(ctx context.Context, recs []T) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range recs {
		if err := r.update(ctx, tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s update: %w", r.collection, err)
	}
	return nil
}

func (r *PostgresRepository[T]) update(ctx context.Context, db execer, rec T) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", r.collection, err)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE qms_records
		SET payload = $3, record_date = $4, status = $5, search = $6, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`, r.collection, rec.RecordID(), payload, rec.RecordDate().UTC(), rec.RecordStatus(), rec.SearchText())
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", r.collection, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s id=%s", domain.ErrNotFound, r.collection, rec.RecordID())
	}
	return nil
}

func (r *PostgresRepository[T]) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM qms_records WHERE collection = $1 AND id = $2`,
		r.collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.collection, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s id=%s", domain.ErrNotFound, r.collection, id)
	}
	return nil
}

// ReplaceAll deletes the collection and inserts recs in one transaction.
func (r *PostgresRepository[T]) ReplaceAll(ctx context.Context, recs []T) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.replaceTx(ctx, tx, recs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s import: %w", r.collection, err)
	}
	return nil
}

// replaceTx is the body of ReplaceAll; Store.ReplaceAll runs several of them
// in one transaction.
func (r *PostgresRepository[T]) replaceTx(ctx context.Context, tx execer, recs []T) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM qms_records WHERE collection = $1`, r.collection); err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.collection, err)
	}
	for _, rec := range recs {
		if rec.RecordID() == "" {
			return fmt.Errorf("%w: record without id", domain.ErrValidation)
		}
		if _, err := r.insert(ctx, tx, rec, false); err != nil {
			return err
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *PostgresRepository[T]) insert(ctx context.Context, db execer, rec T, ignoreConflict bool) (sql.Result, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", r.collection, err)
	}
	query := `
		INSERT INTO qms_records (collection, id, payload, record_date, status, search)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if ignoreConflict {
		query += ` ON CONFLICT (collection, id) DO NOTHING`
	}
	res, err := db.ExecContext(ctx, query,
		r.collection, rec.RecordID(), payload, rec.RecordDate().UTC(), rec.RecordStatus(), rec.SearchText(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", r.collection, err)
	}
	return res, nil
}

func (r *PostgresRepository[T]) query(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.collection, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.collection, err)
		}
		var rec T
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", r.collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", r.collection, err)
	}
	return out, nil
}
