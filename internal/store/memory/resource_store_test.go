package memory

import (
	"context"
	"testing"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newInquiry(title, requester, kind string, owner *uuid.UUID) *models.Inquiry {
	i := &models.Inquiry{
		Title:         title,
		Description:   "description",
		InquiryType:   kind,
		RequesterName: requester,
	}
	i.OwnerID = owner
	return i
}

func TestResourceStore_CRUD(t *testing.T) {
	ctx := context.Background()
	st := NewInquiryStore()
	owner := uuid.New()

	inquiry := newInquiry("Desk quote", "Kim", models.InquiryTypePrice, &owner)
	require.NoError(t, st.Create(ctx, inquiry))
	require.Equal(t, int64(1), inquiry.ID)
	require.False(t, inquiry.CreatedAt.IsZero())

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := st.Get(ctx, inquiry.ID)
		require.NoError(t, err)
		got.Title = "mutated"

		again, err := st.Get(ctx, inquiry.ID)
		require.NoError(t, err)
		require.Equal(t, "Desk quote", again.Title)
	})

	t.Run("update cannot reassign owner", func(t *testing.T) {
		changed := inquiry.Clone()
		changed.Title = "Chair quote"
		other := uuid.New()
		changed.OwnerID = &other
		require.NoError(t, st.Update(ctx, changed))

		got, err := st.Get(ctx, inquiry.ID)
		require.NoError(t, err)
		require.Equal(t, "Chair quote", got.Title)
		require.Equal(t, owner, *got.OwnerID)
		require.Equal(t, inquiry.CreatedAt, got.CreatedAt)
	})

	t.Run("missing records", func(t *testing.T) {
		_, err := st.Get(ctx, 42)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.ErrorIs(t, st.Update(ctx, newInquiry("x", "y", models.InquiryTypeEtc, nil)), store.ErrNotFound)
		require.ErrorIs(t, st.Delete(ctx, 42), store.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, st.Delete(ctx, inquiry.ID))
		_, err := st.Get(ctx, inquiry.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestResourceStore_List(t *testing.T) {
	ctx := context.Background()
	st := NewInquiryStore()
	alice := uuid.New()

	for _, i := range []*models.Inquiry{
		newInquiry("Laptop price", "Alice", models.InquiryTypePrice, &alice),
		newInquiry("Delivery date", "Bob", models.InquiryTypeDelivery, nil),
		newInquiry("Monitor price", "Alice", models.InquiryTypePrice, &alice),
		newInquiry("Anything", "Carol", models.InquiryTypeEtc, nil),
	} {
		require.NoError(t, st.Create(ctx, i))
	}

	tests := []struct {
		name    string
		opts    store.ListOptions
		wantIDs []int64
		total   int
	}{
		{name: "newest first by default", opts: store.ListOptions{}, wantIDs: []int64{4, 3, 2, 1}, total: 4},
		{name: "oldest first", opts: store.ListOptions{Ordering: "created_at"}, wantIDs: []int64{1, 2, 3, 4}, total: 4},
		{name: "unknown ordering falls back", opts: store.ListOptions{Ordering: "bogus"}, wantIDs: []int64{4, 3, 2, 1}, total: 4},
		{name: "owner", opts: store.ListOptions{OwnerID: &alice}, wantIDs: []int64{3, 1}, total: 2},
		{name: "filter", opts: store.ListOptions{Filters: map[string]string{"inquiry_type": "price"}}, wantIDs: []int64{3, 1}, total: 2},
		{name: "search is case insensitive", opts: store.ListOptions{Search: "BOB"}, wantIDs: []int64{2}, total: 1},
		{name: "unknown filter field matches nothing", opts: store.ListOptions{Filters: map[string]string{"colour": "red"}}, wantIDs: []int64{}, total: 0},
		{name: "page", opts: store.ListOptions{Offset: 1, Limit: 2}, wantIDs: []int64{3, 2}, total: 4},
		{name: "offset past end", opts: store.ListOptions{Offset: 10, Limit: 2}, wantIDs: []int64{}, total: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := st.List(ctx, tt.opts)
			require.NoError(t, err)
			require.Equal(t, tt.total, total)

			ids := make([]int64, len(got))
			for i, rec := range got {
				ids[i] = rec.ID
			}
			require.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestResourceStore_Stats(t *testing.T) {
	ctx := context.Background()
	st := NewOutreachStore()

	for _, n := range []struct {
		status string
		count  int
	}{
		{models.StatusReceived, 10},
		{models.StatusReceived, 5},
		{models.StatusConfirmed, 20},
	} {
		o := &models.OutreachInquiry{Title: "visit", Status: n.status, CourseType: models.CourseAI, StudentCount: n.count}
		require.NoError(t, st.Create(ctx, o))
	}

	stats, err := st.Stats(ctx, store.StatsOptions{
		GroupBy: []string{"status", "course_type"},
		Sum:     []string{"student_count"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, map[string]int{models.StatusReceived: 2, models.StatusConfirmed: 1}, stats.Breakdown["status"])
	require.Equal(t, map[string]int{models.CourseAI: 3}, stats.Breakdown["course_type"])
	require.Equal(t, 35, stats.Sums["student_count"])
}
