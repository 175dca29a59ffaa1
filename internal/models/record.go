package models

import (
	"time"

	"github.com/google/uuid"
)

// Record holds the columns shared by every owned resource.
// OwnerID is nil for anonymous submissions and is never reassigned after creation.
type Record struct {
	ID        int64      `json:"id"`
	OwnerID   *uuid.UUID `json:"owner"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Base returns the shared record columns.
func (r *Record) Base() *Record {
	return r
}

// Owner returns the owning user ID, or nil when the record is unowned.
func (r *Record) Owner() *uuid.UUID {
	return r.OwnerID
}

// Resource is implemented by every model embedding Record.
type Resource interface {
	Base() *Record
}
