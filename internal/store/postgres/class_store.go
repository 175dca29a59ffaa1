package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ClassStore implements store.ClassStore using PostgreSQL.
type ClassStore struct {
	*ResourceStore[*models.InternalClass]

	outreach *table[*models.OutreachInquiry]
}

var _ store.ClassStore = (*ClassStore)(nil)

// NewClassStore creates a PostgreSQL-backed class store.
// Enrollments are inserted into outreach_inquiries.
func NewClassStore(pool *pgxpool.Pool) *ClassStore {
	return &ClassStore{
		ResourceStore: newResourceStore(pool, classTable()),
		outreach:      outreachTable(),
	}
}

func (s *ClassStore) ListAvailable(ctx context.Context, day time.Time) ([]*models.InternalClass, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM internal_classes
		WHERE is_active AND current_students < max_students AND schedule_date >= $1
		ORDER BY schedule_date, schedule_time, id
	`, s.table.selectList())

	rows, err := s.pool.Query(ctx, query, models.NewDate(day).Time)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return s.table.collect(rows)
}

func (s *ClassStore) ListPopular(ctx context.Context, limit int) ([]*models.InternalClass, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM internal_classes
		WHERE is_active
		ORDER BY current_students DESC, id DESC
		LIMIT $1
	`, s.table.selectList())

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return s.table.collect(rows)
}

// Enroll takes a seat with a conditional increment and inserts the inquiry
// in the same transaction. The seat is only taken while the class is active
// and below capacity, so concurrent enrollments cannot oversubscribe it.
func (s *ClassStore) Enroll(ctx context.Context, classID int64, inquiry *models.OutreachInquiry) (*models.InternalClass, error) {
	var class *models.InternalClass

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		class, err = s.takeSeat(ctx, tx, classID)
		if err != nil {
			return err
		}
		return s.outreach.insert(ctx, tx, inquiry)
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int64("class_id", classID).
		Int64("inquiry_id", inquiry.ID).
		Int("current_students", class.CurrentStudents).
		Msg("Enrolled in class")

	return class, nil
}

func (s *ClassStore) takeSeat(ctx context.Context, tx pgx.Tx, classID int64) (*models.InternalClass, error) {
	query := fmt.Sprintf(`
		UPDATE internal_classes
		SET current_students = current_students + 1, updated_at = now()
		WHERE id = $1 AND is_active AND current_students < max_students
		RETURNING %s
	`, s.table.selectList())

	class, err := s.table.scan(tx.QueryRow(ctx, query, classID))
	if err == nil {
		return class, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapPostgresError(err)
	}

	// Nothing was updated; find out why.
	var active, full bool
	err = tx.QueryRow(ctx, `
		SELECT is_active, current_students >= max_students
		FROM internal_classes WHERE id = $1
	`, classID).Scan(&active, &full)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, mapPostgresError(err)
	case !active:
		return nil, store.ErrClassInactive
	default:
		return nil, store.ErrClassFull
	}
}
