package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	alice = &Principal{ID: uuid.New(), Email: "alice@example.com"}
	bob   = &Principal{ID: uuid.New(), Email: "bob@example.com"}
	staff = &Principal{ID: uuid.New(), Email: "staff@example.com", IsStaff: true}
)

func ownedBy(p *Principal) *models.Inquiry {
	i := &models.Inquiry{Title: "문의", RequesterName: "김교사"}
	if p != nil {
		i.OwnerID = &p.ID
	}
	return i
}

func TestIsOwner(t *testing.T) {
	tests := []struct {
		name     string
		resource *models.Inquiry
		caller   *Principal
		expected bool
	}{
		{name: "owner", resource: ownedBy(alice), caller: alice, expected: true},
		{name: "other user", resource: ownedBy(alice), caller: bob, expected: false},
		{name: "staff is not the owner", resource: ownedBy(alice), caller: staff, expected: false},
		{name: "anonymous caller", resource: ownedBy(alice), caller: nil, expected: false},
		{name: "zero principal", resource: ownedBy(alice), caller: &Principal{}, expected: false},
		{name: "unowned record and user", resource: ownedBy(nil), caller: alice, expected: false},
		{name: "unowned record and staff", resource: ownedBy(nil), caller: staff, expected: false},
		{name: "unowned record and anonymous", resource: ownedBy(nil), caller: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, IsOwner(tt.resource, tt.caller))
		})
	}
}

func TestIsOwner_ZeroIDNeverMatches(t *testing.T) {
	// A record owned by uuid.Nil must not match a principal with the zero ID.
	nilOwner := uuid.Nil
	i := &models.Inquiry{}
	i.OwnerID = &nilOwner

	require.False(t, IsOwner(i, &Principal{ID: uuid.Nil}))
}

func TestDecide(t *testing.T) {
	mine := ownedBy(alice)
	unowned := ownedBy(nil)

	tests := []struct {
		name     string
		action   Action
		caller   *Principal
		resource Owned
		status   int
	}{
		{name: "anonymous list", action: ActionList, caller: nil, status: http.StatusOK},
		{name: "anonymous create", action: ActionCreate, caller: nil, status: http.StatusOK},
		{name: "user create", action: ActionCreate, caller: alice, status: http.StatusOK},
		{name: "anonymous list own", action: ActionListOwn, caller: nil, status: http.StatusUnauthorized},
		{name: "user list own", action: ActionListOwn, caller: bob, status: http.StatusOK},

		{name: "anonymous retrieve", action: ActionRetrieve, caller: nil, resource: mine, status: http.StatusUnauthorized},
		{name: "anonymous retrieve unowned", action: ActionRetrieve, caller: nil, resource: unowned, status: http.StatusUnauthorized},
		{name: "owner retrieve", action: ActionRetrieve, caller: alice, resource: mine, status: http.StatusOK},
		{name: "other retrieve", action: ActionRetrieve, caller: bob, resource: mine, status: http.StatusForbidden},
		{name: "staff retrieve", action: ActionRetrieve, caller: staff, resource: mine, status: http.StatusOK},

		{name: "anonymous update", action: ActionUpdate, caller: nil, resource: mine, status: http.StatusUnauthorized},
		{name: "owner update", action: ActionUpdate, caller: alice, resource: mine, status: http.StatusOK},
		{name: "other update", action: ActionUpdate, caller: bob, resource: mine, status: http.StatusForbidden},
		{name: "staff update", action: ActionUpdate, caller: staff, resource: mine, status: http.StatusOK},
		{name: "user update unowned", action: ActionUpdate, caller: alice, resource: unowned, status: http.StatusForbidden},
		{name: "staff update unowned", action: ActionUpdate, caller: staff, resource: unowned, status: http.StatusOK},

		{name: "anonymous partial update", action: ActionPartialUpdate, caller: nil, resource: mine, status: http.StatusUnauthorized},
		{name: "owner partial update", action: ActionPartialUpdate, caller: alice, resource: mine, status: http.StatusOK},
		{name: "other partial update", action: ActionPartialUpdate, caller: bob, resource: mine, status: http.StatusForbidden},

		{name: "anonymous delete", action: ActionDelete, caller: nil, resource: mine, status: http.StatusUnauthorized},
		{name: "owner delete", action: ActionDelete, caller: alice, resource: mine, status: http.StatusOK},
		{name: "other delete", action: ActionDelete, caller: bob, resource: mine, status: http.StatusForbidden},
		{name: "staff delete", action: ActionDelete, caller: staff, resource: mine, status: http.StatusOK},
		{name: "user delete unowned", action: ActionDelete, caller: bob, resource: unowned, status: http.StatusForbidden},

		{name: "unknown action", action: Action(99), caller: staff, resource: mine, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Decide(tt.action, tt.caller, tt.resource)
			require.Equal(t, tt.status, decision.Status())
			require.Equal(t, tt.status == http.StatusOK, decision.Allowed)
		})
	}
}

func TestRequireStaff(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, RequireStaff(nil).Status())
	require.Equal(t, http.StatusForbidden, RequireStaff(alice).Status())
	require.True(t, RequireStaff(staff).Allowed)
}

func TestCanEdit(t *testing.T) {
	require.True(t, CanEdit(ownedBy(alice), alice))
	require.True(t, CanEdit(ownedBy(alice), staff))
	require.False(t, CanEdit(ownedBy(alice), bob))
	require.False(t, CanEdit(ownedBy(alice), nil))
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	mine := ownedBy(alice)

	found := func(context.Context) (*models.Inquiry, error) { return mine, nil }
	missing := func(context.Context) (*models.Inquiry, error) { return nil, store.ErrNotFound }
	broken := func(context.Context) (*models.Inquiry, error) { return nil, errors.New("connection reset") }

	t.Run("missing record is not found for every caller", func(t *testing.T) {
		for _, caller := range []*Principal{nil, alice, bob, staff} {
			for _, action := range []Action{ActionRetrieve, ActionUpdate, ActionPartialUpdate, ActionDelete} {
				_, decision, err := Evaluate(ctx, action, caller, missing)
				require.NoError(t, err)
				require.Equal(t, http.StatusNotFound, decision.Status(), "action %s", action)
			}
		}
	})

	t.Run("existing record is decided", func(t *testing.T) {
		got, decision, err := Evaluate(ctx, ActionUpdate, bob, found)
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, decision.Status())
		require.Same(t, mine, got)

		_, decision, err = Evaluate(ctx, ActionDelete, nil, found)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, decision.Status())

		_, decision, err = Evaluate(ctx, ActionRetrieve, alice, found)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	})

	t.Run("store failures propagate", func(t *testing.T) {
		_, _, err := Evaluate(ctx, ActionRetrieve, staff, broken)
		require.Error(t, err)
	})
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, PrincipalFromContext(ctx))

	ctx = WithPrincipal(ctx, alice)
	require.Same(t, alice, PrincipalFromContext(ctx))
	require.True(t, PrincipalFromContext(ctx).IsAuthenticated())

	var anonymous *Principal
	require.False(t, anonymous.IsAuthenticated())
}
