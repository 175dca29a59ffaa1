package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
)

// Action is an operation a handler wants to perform on a resource kind.
type Action int

const (
	ActionList Action = iota
	ActionListOwn
	ActionCreate
	ActionRetrieve
	ActionUpdate
	ActionPartialUpdate
	ActionDelete
)

var actionNames = [...]string{"list", "list_own", "create", "retrieve", "update", "partial_update", "delete"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// DenyReason explains why a Decision was not Allowed.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonUnauthenticated
	ReasonForbidden
	ReasonNotFound
)

func (r DenyReason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonForbidden:
		return "forbidden"
	case ReasonNotFound:
		return "not_found"
	default:
		return "none"
	}
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

var (
	Allow = Decision{Allowed: true}

	denyUnauthenticated = Decision{Reason: ReasonUnauthenticated}
	denyForbidden       = Decision{Reason: ReasonForbidden}
	denyNotFound        = Decision{Reason: ReasonNotFound}
)

// Status maps a denial to its HTTP status code. Allowed decisions map to 200.
func (d Decision) Status() int {
	switch d.Reason {
	case ReasonUnauthenticated:
		return http.StatusUnauthorized
	case ReasonForbidden:
		return http.StatusForbidden
	case ReasonNotFound:
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}

// Owned is implemented by records that may belong to a user.
type Owned interface {
	Owner() *uuid.UUID
}

// IsOwner reports whether p owns resource. Anonymous callers own nothing and
// unowned records are owned by nobody.
func IsOwner(resource Owned, p *Principal) bool {
	if !p.IsAuthenticated() || resource == nil {
		return false
	}
	owner := resource.Owner()
	return owner != nil && *owner == p.ID
}

// CanEdit reports whether p may update or delete resource.
func CanEdit(resource Owned, p *Principal) bool {
	return Decide(ActionUpdate, p, resource).Allowed
}

// Decide applies the access table to an already loaded resource.
// resource is ignored for collection actions.
//
//	list, create                      anyone
//	list_own                          signed in
//	retrieve, update, partial, delete signed in, and staff or owner
func Decide(action Action, p *Principal, resource Owned) Decision {
	switch action {
	case ActionList, ActionCreate:
		return Allow
	case ActionListOwn:
		if !p.IsAuthenticated() {
			return denyUnauthenticated
		}
		return Allow
	case ActionRetrieve, ActionUpdate, ActionPartialUpdate, ActionDelete:
		if !p.IsAuthenticated() {
			return denyUnauthenticated
		}
		if p.IsStaff || IsOwner(resource, p) {
			return Allow
		}
		return denyForbidden
	default:
		return denyForbidden
	}
}

// RequireStaff gates staff-only operations.
func RequireStaff(p *Principal) Decision {
	switch {
	case !p.IsAuthenticated():
		return denyUnauthenticated
	case !p.IsStaff:
		return denyForbidden
	default:
		return Allow
	}
}

// Evaluate loads a single resource and then decides on it. A missing record
// yields a NotFound decision before authentication is considered.
func Evaluate[T Owned](ctx context.Context, action Action, p *Principal, load func(context.Context) (T, error)) (T, Decision, error) {
	resource, err := load(ctx)
	if err != nil {
		var zero T
		if errors.Is(err, store.ErrNotFound) {
			return zero, denyNotFound, nil
		}
		return zero, Decision{}, err
	}
	return resource, Decide(action, p, resource), nil
}
