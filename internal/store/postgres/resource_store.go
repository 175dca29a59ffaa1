package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// table maps one resource kind onto its PostgreSQL table.
// Every table has id, owner_id, created_at and updated_at columns ahead of
// the business columns listed here.
type table[T models.Resource] struct {
	name    string
	columns []string
	newRec  func() T
	values  func(T) []any // Insert/update arguments, in column order
	dest    func(T) []any // Scan destinations, in column order

	search  []string          // Columns matched with ILIKE
	filters map[string]string // Filter and breakdown field -> column
	orders  map[string]string // Ordering field -> comma separated columns
	sums    map[string]string // Summed field -> column
}

func (t *table[T]) selectList() string {
	return "id, owner_id, created_at, updated_at, " + strings.Join(t.columns, ", ")
}

func (t *table[T]) scan(row pgx.Row) (T, error) {
	rec := t.newRec()
	base := rec.Base()
	dest := append([]any{&base.ID, &base.OwnerID, &base.CreatedAt, &base.UpdatedAt}, t.dest(rec)...)
	if err := row.Scan(dest...); err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

func (t *table[T]) collect(rows pgx.Rows) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, mapPostgresError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return out, nil
}

// insert writes rec with q, so it can join a caller's transaction.
func (t *table[T]) insert(ctx context.Context, q querier, rec T) error {
	placeholders := make([]string, len(t.columns)+1)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, %s)
		VALUES (%s)
		RETURNING id, created_at, updated_at
	`, t.name, strings.Join(t.columns, ", "), strings.Join(placeholders, ", "))

	base := rec.Base()
	args := append([]any{base.OwnerID}, t.values(rec)...)
	if err := q.QueryRow(ctx, query, args...).Scan(&base.ID, &base.CreatedAt, &base.UpdatedAt); err != nil {
		return mapPostgresError(err)
	}

	log.Debug().Str("table", t.name).Int64("id", base.ID).Msg("Created record")
	return nil
}

// ResourceStore implements store.ResourceStore using PostgreSQL.
type ResourceStore[T models.Resource] struct {
	pool  *pgxpool.Pool
	table *table[T]
}

func newResourceStore[T models.Resource](pool *pgxpool.Pool, t *table[T]) *ResourceStore[T] {
	return &ResourceStore[T]{pool: pool, table: t}
}

func (s *ResourceStore[T]) Create(ctx context.Context, rec T) error {
	if err := s.table.insert(ctx, s.pool, rec); err != nil {
		return fmt.Errorf("failed to create %s record: %w", s.table.name, err)
	}
	return nil
}

func (s *ResourceStore[T]) Get(ctx context.Context, id int64) (T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, s.table.selectList(), s.table.name)

	rec, err := s.table.scan(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return rec, mapPostgresError(err)
	}
	return rec, nil
}

// Update rewrites the business columns. Owner and creation time are never changed
// and are read back into rec.
func (s *ResourceStore[T]) Update(ctx context.Context, rec T) error {
	assignments := make([]string, len(s.table.columns))
	for i, col := range s.table.columns {
		assignments[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}

	base := rec.Base()
	args := append(s.table.values(rec), base.ID)
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s, updated_at = now()
		WHERE id = $%d
		RETURNING owner_id, created_at, updated_at
	`, s.table.name, strings.Join(assignments, ", "), len(args))

	err := s.pool.QueryRow(ctx, query, args...).Scan(&base.OwnerID, &base.CreatedAt, &base.UpdatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (s *ResourceStore[T]) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table.name), id)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	log.Debug().Str("table", s.table.name).Int64("id", id).Msg("Deleted record")
	return nil
}

func (s *ResourceStore[T]) List(ctx context.Context, opts store.ListOptions) ([]T, int, error) {
	w := s.where(opts)

	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s%s`, s.table.name, w.clause())
	if err := s.pool.QueryRow(ctx, countQuery, w.args...).Scan(&total); err != nil {
		return nil, 0, mapPostgresError(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY %s`,
		s.table.selectList(), s.table.name, w.clause(), s.orderBy(opts.Ordering))
	args := w.args
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPostgresError(err)
	}
	records, err := s.table.collect(rows)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (s *ResourceStore[T]) Stats(ctx context.Context, opts store.StatsOptions) (*store.Stats, error) {
	stats := &store.Stats{
		Breakdown: make(map[string]map[string]int, len(opts.GroupBy)),
		Sums:      make(map[string]int, len(opts.Sum)),
	}

	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table.name)).Scan(&stats.Total); err != nil {
		return nil, mapPostgresError(err)
	}

	for _, field := range opts.GroupBy {
		stats.Breakdown[field] = make(map[string]int)
		col, ok := s.table.filters[field]
		if !ok {
			continue
		}

		counts, err := s.countBy(ctx, col)
		if err != nil {
			return nil, err
		}
		stats.Breakdown[field] = counts
	}

	for _, field := range opts.Sum {
		col, ok := s.table.sums[field]
		if !ok {
			stats.Sums[field] = 0
			continue
		}
		var sum int
		query := fmt.Sprintf(`SELECT COALESCE(SUM(%s), 0) FROM %s`, col, s.table.name)
		if err := s.pool.QueryRow(ctx, query).Scan(&sum); err != nil {
			return nil, mapPostgresError(err)
		}
		stats.Sums[field] = sum
	}

	return stats, nil
}

func (s *ResourceStore[T]) countBy(ctx context.Context, col string) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %[1]s::text, count(*) FROM %[2]s GROUP BY %[1]s`, col, s.table.name)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var value string
		var n int
		if err := rows.Scan(&value, &n); err != nil {
			return nil, mapPostgresError(err)
		}
		counts[value] = n
	}
	return counts, mapPostgresError(rows.Err())
}

func (s *ResourceStore[T]) where(opts store.ListOptions) *conditions {
	w := &conditions{}

	if opts.OwnerID != nil {
		w.add("owner_id = $%d", *opts.OwnerID)
	}

	for field, value := range opts.Filters {
		if col, ok := s.table.filters[field]; ok {
			w.add(col+"::text = $%d", value)
		}
	}

	if opts.Search != "" && len(s.table.search) > 0 {
		matches := make([]string, len(s.table.search))
		for i, col := range s.table.search {
			matches[i] = col + " ILIKE $%[1]d"
		}
		w.add("("+strings.Join(matches, " OR ")+")", "%"+escapeLike(opts.Search)+"%")
	}

	return w
}

// orderBy resolves an ordering such as "-created_at". Unknown fields fall
// back to newest first; ties are broken by id in the same direction.
func (s *ResourceStore[T]) orderBy(ordering string) string {
	field, desc := strings.CutPrefix(ordering, "-")

	col, ok := s.table.orders[field]
	if !ok {
		col = "created_at"
		if field != "created_at" {
			desc = true
		}
	}

	dir := " ASC"
	if desc {
		dir = " DESC"
	}

	var terms []string
	for c := range strings.SplitSeq(col+",id", ",") {
		terms = append(terms, strings.TrimSpace(c)+dir)
	}
	return strings.Join(terms, ", ")
}

// conditions accumulates a WHERE clause and its positional arguments.
type conditions struct {
	parts []string
	args  []any
}

// add appends a condition whose format refers to the new argument with %d or %[1]d.
func (c *conditions) add(format string, arg any) {
	c.args = append(c.args, arg)
	c.parts = append(c.parts, fmt.Sprintf(format, len(c.args)))
}

func (c *conditions) clause() string {
	if len(c.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.parts, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// clock scans a TIME column into a models.TimeOfDay.
type clock struct {
	t *models.TimeOfDay
}

func (c *clock) ScanTime(v pgtype.Time) error {
	if !v.Valid {
		*c.t = models.TimeOfDay{}
		return nil
	}
	*c.t = models.TimeOfDayFromDuration(time.Duration(v.Microseconds) * time.Microsecond)
	return nil
}

func clockValue(t models.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Since().Microseconds(), Valid: t.Valid}
}
