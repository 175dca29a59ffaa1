package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
)

// ClassStore implements store.ClassStore using in-memory storage.
// Enrollments are written to the outreach store it was created with.
type ClassStore struct {
	*ResourceStore[*models.InternalClass]

	outreach *ResourceStore[*models.OutreachInquiry]
}

var _ store.ClassStore = (*ClassStore)(nil)

// NewClassStore creates a class store that records enrollments in outreach.
func NewClassStore(outreach *ResourceStore[*models.OutreachInquiry]) *ClassStore {
	return &ClassStore{
		ResourceStore: NewResourceStore(classSchema()),
		outreach:      outreach,
	}
}

// ListAvailable returns open classes with free seats, earliest first.
func (s *ClassStore) ListAvailable(ctx context.Context, day time.Time) ([]*models.InternalClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	classes := s.filterLocked(func(c *models.InternalClass) bool {
		return c.IsActive && !c.IsFull() && c.StartsOnOrAfter(day)
	})
	slices.SortFunc(classes, func(a, b *models.InternalClass) int {
		if c := compareSchedule(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return s.cloneAll(classes), nil
}

// ListPopular returns up to limit active classes by enrollment count.
func (s *ClassStore) ListPopular(ctx context.Context, limit int) ([]*models.InternalClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	classes := s.filterLocked(func(c *models.InternalClass) bool { return c.IsActive })
	slices.SortFunc(classes, func(a, b *models.InternalClass) int {
		if c := cmp.Compare(b.CurrentStudents, a.CurrentStudents); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return s.cloneAll(paginate(classes, 0, limit)), nil
}

// Enroll checks capacity and takes a seat while holding the class lock,
// so concurrent enrollments cannot oversubscribe a class.
func (s *ClassStore) Enroll(ctx context.Context, classID int64, inquiry *models.OutreachInquiry) (*models.InternalClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	class, exists := s.records[classID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !class.IsActive {
		return nil, store.ErrClassInactive
	}
	if class.IsFull() {
		return nil, store.ErrClassFull
	}

	if err := s.outreach.Create(ctx, inquiry); err != nil {
		return nil, err
	}

	class.CurrentStudents++
	class.UpdatedAt = time.Now().UTC()

	return class.Clone(), nil
}

func (s *ClassStore) cloneAll(classes []*models.InternalClass) []*models.InternalClass {
	out := make([]*models.InternalClass, len(classes))
	for i, c := range classes {
		out[i] = c.Clone()
	}
	return out
}
