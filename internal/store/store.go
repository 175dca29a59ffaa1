package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/google/uuid"
)

// Sentinel errors for common error conditions
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrClassFull     = errors.New("class is full")
	ErrClassInactive = errors.New("class is not open for enrollment")
)

// ConstraintError reports a write the database rejected for a field value.
type ConstraintError struct {
	Field      string // Column name, or the constraint name when no column is reported
	Constraint string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s violated by %s", e.Constraint, e.Field)
}

// ResourceStore persists one kind of owned record.
// Implementations assign ID and timestamps on Create and refresh UpdatedAt on Update.
// The owner column is written on Create only.
type ResourceStore[T models.Resource] interface {
	// Create inserts rec and fills in its ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, rec T) error

	// Get loads a record by ID.
	// Returns ErrNotFound if no such record exists.
	Get(ctx context.Context, id int64) (T, error)

	// Update replaces the business fields of an existing record.
	// Returns ErrNotFound if the record was deleted concurrently.
	Update(ctx context.Context, rec T) error

	// Delete permanently removes a record.
	// Returns ErrNotFound if no such record exists.
	Delete(ctx context.Context, id int64) error

	// List returns one page of records and the total number of matches.
	List(ctx context.Context, opts ListOptions) ([]T, int, error)

	// Stats counts records grouped by each of the requested fields.
	Stats(ctx context.Context, opts StatsOptions) (*Stats, error)
}

// ListOptions filters and pages a resource listing.
type ListOptions struct {
	Search   string            // Case-insensitive substring over the kind's search fields
	Filters  map[string]string // Exact match on filterable fields
	OwnerID  *uuid.UUID        // Restrict to records owned by this user
	Ordering string            // Field name, "-" prefix for descending; empty means newest first
	Offset   int
	Limit    int // 0 means no limit
}

// StatsOptions selects the aggregates returned by Stats.
type StatsOptions struct {
	GroupBy []string // Fields to break down by value
	Sum     []string // Numeric fields to total
}

// Stats holds record counts.
type Stats struct {
	Total     int
	Breakdown map[string]map[string]int // field -> value -> count
	Sums      map[string]int            // field -> total
}

// ClassStore persists internal classes and records enrollments against them.
type ClassStore interface {
	ResourceStore[*models.InternalClass]

	// ListAvailable returns active classes with free seats scheduled on or after day,
	// ordered by schedule.
	ListAvailable(ctx context.Context, day time.Time) ([]*models.InternalClass, error)

	// ListPopular returns the active classes with the most enrollments.
	ListPopular(ctx context.Context, limit int) ([]*models.InternalClass, error)

	// Enroll stores inquiry and takes one seat in the class in a single atomic step.
	// Returns ErrNotFound, ErrClassInactive or ErrClassFull without writing anything
	// when the class cannot accept the enrollment.
	Enroll(ctx context.Context, classID int64, inquiry *models.OutreachInquiry) (*models.InternalClass, error)
}
