//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString: fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))

	return pool
}

func createUser(t *testing.T, ctx context.Context, users *UserStore, email string) *models.User {
	t.Helper()
	now := time.Now()
	user := &models.User{
		UserID:    uuid.Must(uuid.NewV7()),
		Email:     email,
		Name:      "Tester",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, users.Create(ctx, user))
	return user
}

func TestIntegration_Migrations(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresContainer(t, ctx)

	// Applying twice is a no-op
	require.NoError(t, RunMigrations(ctx, pool))
}

func TestIntegration_InquiryLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresContainer(t, ctx)

	users := NewUserStore(pool)
	owner := createUser(t, ctx, users, "owner@example.com")
	inquiries := NewInquiryStore(pool)

	inquiry := &models.Inquiry{
		Title:         "Desk quote",
		Description:   "Twenty desks",
		InquiryType:   models.InquiryTypePrice,
		RequesterName: "Kim",
	}
	inquiry.OwnerID = &owner.UserID

	t.Run("create assigns id and timestamps", func(t *testing.T) {
		require.NoError(t, inquiries.Create(ctx, inquiry))
		require.NotZero(t, inquiry.ID)
		require.False(t, inquiry.CreatedAt.IsZero())
	})

	t.Run("get round trips", func(t *testing.T) {
		got, err := inquiries.Get(ctx, inquiry.ID)
		require.NoError(t, err)
		require.Equal(t, "Desk quote", got.Title)
		require.Equal(t, owner.UserID, *got.OwnerID)
	})

	t.Run("update keeps owner", func(t *testing.T) {
		changed := inquiry.Clone()
		changed.Title = "Chair quote"
		changed.OwnerID = nil
		require.NoError(t, inquiries.Update(ctx, changed))
		require.Equal(t, owner.UserID, *changed.OwnerID)

		got, err := inquiries.Get(ctx, inquiry.ID)
		require.NoError(t, err)
		require.Equal(t, "Chair quote", got.Title)
		require.Equal(t, owner.UserID, *got.OwnerID)
	})

	t.Run("list filters by owner and search", func(t *testing.T) {
		anonymous := &models.Inquiry{Title: "Other", Description: "x", InquiryType: models.InquiryTypeEtc, RequesterName: "Lee"}
		require.NoError(t, inquiries.Create(ctx, anonymous))

		mine, total, err := inquiries.List(ctx, store.ListOptions{OwnerID: &owner.UserID})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Len(t, mine, 1)

		found, total, err := inquiries.List(ctx, store.ListOptions{Search: "lee"})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Equal(t, anonymous.ID, found[0].ID)

		stats, err := inquiries.Stats(ctx, store.StatsOptions{GroupBy: []string{"inquiry_type"}})
		require.NoError(t, err)
		require.Equal(t, 2, stats.Total)
		require.Equal(t, 1, stats.Breakdown["inquiry_type"][models.InquiryTypeEtc])
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, inquiries.Delete(ctx, inquiry.ID))
		_, err := inquiries.Get(ctx, inquiry.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, inquiries.Delete(ctx, inquiry.ID), store.ErrNotFound)
	})
}

func TestIntegration_OutreachColumns(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresContainer(t, ctx)
	outreach := NewOutreachStore(pool)

	date, err := models.ParseDate("2026-03-15")
	require.NoError(t, err)
	at, err := models.ParseTimeOfDay("14:30")
	require.NoError(t, err)

	inquiry := &models.OutreachInquiry{
		Title:            "School visit",
		OrganizationName: "Hana Elementary",
		ContactPerson:    "Park",
		Phone:            "010-1234-5678",
		Email:            "park@example.com",
		CourseType:       models.CourseArduino,
		StudentCount:     25,
		StudentGrade:     "중학생",
		PreferredDate:    date,
		PreferredTime:    at,
		Duration:         "2시간",
		Location:         "Seoul",
		Message:          "Please visit",
		Status:           models.StatusReceived,
	}
	require.NoError(t, outreach.Create(ctx, inquiry))

	got, err := outreach.Get(ctx, inquiry.ID)
	require.NoError(t, err)
	require.Equal(t, "2026-03-15", got.PreferredDate.String())
	require.Equal(t, "14:30", got.PreferredTime.String())
	require.Equal(t, []string{}, got.Equipment)
	require.Nil(t, got.AdminNotes)

	stats, err := outreach.Stats(ctx, store.StatsOptions{Sum: []string{"student_count"}})
	require.NoError(t, err)
	require.Equal(t, 25, stats.Sums["student_count"])
}

func TestIntegration_EnrollRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresContainer(t, ctx)
	classes := NewClassStore(pool)
	outreach := NewOutreachStore(pool)

	date, err := models.ParseDate("2099-01-10")
	require.NoError(t, err)
	at, err := models.ParseTimeOfDay("10:00")
	require.NoError(t, err)

	class := &models.InternalClass{
		Title:         "Arduino basics",
		Instructor:    "Choi",
		CourseType:    models.CourseArduino,
		ClassType:     models.ClassTypeOffline,
		MaxStudents:   3,
		ScheduleDate:  date,
		ScheduleTime:  at,
		DurationHours: 2,
		Sessions:      1,
		Location:      "Lab 1",
		IsActive:      true,
	}
	require.NoError(t, classes.Create(ctx, class))

	contact := models.Enrollment{RequesterName: "Yoon", Phone: "010-0000-0000", Email: "y@example.com", StudentGrade: "성인"}
	contact.ApplyDefaults()

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := classes.Enroll(ctx, class.ID, class.EnrollmentInquiry(contact, nil))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, full int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrClassFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 3, ok)
	require.Equal(t, 7, full)

	got, err := classes.Get(ctx, class.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.CurrentStudents)

	_, total, err := outreach.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, total)

	_, err = classes.Enroll(ctx, 9999, class.EnrollmentInquiry(contact, nil))
	require.ErrorIs(t, err, store.ErrNotFound)

	available, err := classes.ListAvailable(ctx, time.Now())
	require.NoError(t, err)
	require.Empty(t, available)

	popular, err := classes.ListPopular(ctx, 5)
	require.NoError(t, err)
	require.Len(t, popular, 1)
}

func TestIntegration_AccountStores(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresContainer(t, ctx)

	users := NewUserStore(pool)
	sessions := NewSessionStore(pool)
	verifications := NewVerificationStore(pool)

	user := createUser(t, ctx, users, "Mixed@Example.com")

	t.Run("email lookup ignores case", func(t *testing.T) {
		got, err := users.GetByEmail(ctx, "mixed@example.COM")
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
		require.False(t, got.HasPassword())
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := &models.User{UserID: uuid.Must(uuid.NewV7()), Email: "mixed@example.com", CreatedAt: time.Now(), UpdatedAt: time.Now()}
		require.ErrorIs(t, users.Create(ctx, dup), store.ErrUserAlreadyExists)
	})

	t.Run("sessions", func(t *testing.T) {
		now := time.Now()
		session := &models.Session{
			SessionID:  uuid.Must(uuid.NewV7()),
			UserID:     user.UserID,
			CreatedAt:  now,
			ExpiresAt:  now.Add(time.Hour),
			LastUsedAt: now,
			IPAddress:  "192.0.2.10",
		}
		require.NoError(t, sessions.Create(ctx, session))

		got, err := sessions.Get(ctx, session.SessionID)
		require.NoError(t, err)
		require.Equal(t, "192.0.2.10", got.IPAddress)

		require.NoError(t, sessions.UpdateLastUsed(ctx, session.SessionID))
		require.NoError(t, sessions.Delete(ctx, session.SessionID))
		_, err = sessions.Get(ctx, session.SessionID)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("verification tokens", func(t *testing.T) {
		v := &models.EmailVerification{Token: uuid.New(), UserID: user.UserID, CreatedAt: time.Now()}
		require.NoError(t, verifications.Create(ctx, v))

		require.NoError(t, verifications.MarkVerified(ctx, v.Token, time.Now()))
		require.ErrorIs(t, verifications.MarkVerified(ctx, v.Token, time.Now()), store.ErrAlreadyVerified)
		require.ErrorIs(t, verifications.MarkVerified(ctx, uuid.New(), time.Now()), store.ErrVerificationNotFound)
	})
}
