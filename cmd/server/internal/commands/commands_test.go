package commands

import (
	"context"
	"testing"
	"time"

	"github.com/codinglab/eduhub/internal/auth"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryBackend(t *testing.T) *backend {
	t.Helper()
	b, err := openBackend(context.Background(), "memory", nil, false)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestLoadFixture(t *testing.T) {
	fx, err := loadFixture("testdata/classes.yaml")
	require.NoError(t, err)

	require.NotNil(t, fx.Staff)
	require.Equal(t, "운영팀", fx.Staff.Name)
	require.Len(t, fx.Classes, 2)

	python := fx.Classes[0]
	assert.Equal(t, models.CoursePython, python.CourseType)
	assert.Equal(t, models.ClassTypeOffline, python.ClassType)
	assert.Equal(t, "2099-03-07", python.ScheduleDate.String())
	assert.Equal(t, "10:00", python.ScheduleTime.String())
	assert.True(t, python.IsActive)
	assert.Equal(t, 1, fx.Classes[1].Sessions)

	_, err = loadFixture("testdata/invalid.yaml")
	require.ErrorContains(t, err, "정원 초과")
}

func TestSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	b := memoryBackend(t)

	for range 2 {
		fx, err := loadFixture("testdata/classes.yaml")
		require.NoError(t, err)
		require.NoError(t, seed(ctx, b, fx, "correct horse battery"))
	}

	_, count, err := b.Classes.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	staff, err := b.Users.GetByEmail(ctx, "admin@codinglab.kr")
	require.NoError(t, err)
	require.True(t, staff.IsStaff)
	require.True(t, staff.EmailVerified)
	require.True(t, auth.CheckPassword(staff.PasswordHash, "correct horse battery"))
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	b := memoryBackend(t)

	user, err := createUser(ctx, b.Users, "  Instructor@Example.com ", "선생님", "long enough", false)
	require.NoError(t, err)
	require.Equal(t, "instructor@example.com", user.Email)
	require.False(t, user.IsStaff)

	_, err = createUser(ctx, b.Users, "instructor@example.com", "", "long enough", false)
	require.ErrorIs(t, err, store.ErrUserAlreadyExists)

	_, err = createUser(ctx, b.Users, "short@example.com", "", "short", false)
	require.ErrorIs(t, err, auth.ErrPasswordTooShort)

	_, err = createUser(ctx, b.Users, " ", "", "long enough", false)
	require.Error(t, err)
}

func TestSetStaffEndsSessions(t *testing.T) {
	ctx := context.Background()
	b := memoryBackend(t)

	user, err := createUser(ctx, b.Users, "head@example.com", "", "long enough", true)
	require.NoError(t, err)

	now := time.Now()
	session := &models.Session{SessionID: uuid.New(), UserID: user.UserID, CreatedAt: now, ExpiresAt: now.Add(time.Hour), LastUsedAt: now}
	require.NoError(t, b.Sessions.Create(ctx, session))

	revoked := auth.NewSessionRevocationChecker(b.Sessions)
	isRevoked, err := revoked.IsRevoked(ctx, session.SessionID)
	require.NoError(t, err)
	require.False(t, isRevoked)

	updated, err := setStaff(ctx, b.Users, b.Sessions, " HEAD@example.com", false)
	require.NoError(t, err)
	require.False(t, updated.IsStaff)

	stored, err := b.Users.Get(ctx, user.UserID)
	require.NoError(t, err)
	require.False(t, stored.IsStaff)

	isRevoked, err = revoked.IsRevoked(ctx, session.SessionID)
	require.NoError(t, err)
	require.True(t, isRevoked)

	_, err = setStaff(ctx, b.Users, b.Sessions, "nobody@example.com", true)
	require.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestPostgresStoreFlagsValidate(t *testing.T) {
	tests := []struct {
		name    string
		flags   PostgresStoreFlags
		wantErr string
	}{
		{name: "missing connection string", flags: PostgresStoreFlags{MaxConns: 20, MinConns: 2}, wantErr: "connection string is required"},
		{name: "min above max", flags: PostgresStoreFlags{ConnString: "postgres://localhost/eduhub", MaxConns: 2, MinConns: 5}, wantErr: "exceeds"},
		{name: "valid", flags: PostgresStoreFlags{ConnString: "postgres://localhost/eduhub", MaxConns: 20, MinConns: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAuthFlagsValidate(t *testing.T) {
	flags := AuthFlags{AccessTTL: 1, SessionTTL: 1}
	require.NoError(t, flags.Validate())

	flags.OIDCIssuer = "https://accounts.example.com"
	require.Error(t, flags.Validate())

	flags.OIDCAudience = "eduhub"
	require.NoError(t, flags.Validate())

	require.Error(t, (&AuthFlags{}).Validate())
}

func TestOpenBackendRejectsUnknownStore(t *testing.T) {
	_, err := openBackend(context.Background(), "sqlite", nil, false)
	require.ErrorContains(t, err, "unknown store type")
}
