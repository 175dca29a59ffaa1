package memory

import (
	"cmp"
	"strconv"

	"github.com/codinglab/eduhub/internal/models"
)

// NewInquiryStore creates an in-memory store for general inquiries.
func NewInquiryStore() *ResourceStore[*models.Inquiry] {
	return NewResourceStore(Schema[*models.Inquiry]{
		Clone: (*models.Inquiry).Clone,
		Search: func(i *models.Inquiry) []string {
			return []string{i.Title, i.RequesterName}
		},
		Attr: func(i *models.Inquiry, field string) (string, bool) {
			switch field {
			case "inquiry_type":
				return i.InquiryType, true
			}
			return "", false
		},
	})
}

// NewLessonStore creates an in-memory store for lesson inquiries.
func NewLessonStore() *ResourceStore[*models.LessonInquiry] {
	return NewResourceStore(Schema[*models.LessonInquiry]{
		Clone: (*models.LessonInquiry).Clone,
		Search: func(l *models.LessonInquiry) []string {
			return []string{l.Title, l.RequesterName, l.TargetAudience}
		},
		Attr: func(l *models.LessonInquiry, field string) (string, bool) {
			switch field {
			case "inquiry_type":
				return l.InquiryType, true
			}
			return "", false
		},
		Number: func(l *models.LessonInquiry, field string) (int, bool) {
			if field == "participant_count" && l.ParticipantCount != nil {
				return *l.ParticipantCount, true
			}
			return 0, false
		},
	})
}

// NewOutreachStore creates an in-memory store for outreach inquiries.
func NewOutreachStore() *ResourceStore[*models.OutreachInquiry] {
	return NewResourceStore(Schema[*models.OutreachInquiry]{
		Clone: (*models.OutreachInquiry).Clone,
		Search: func(o *models.OutreachInquiry) []string {
			return []string{o.Title, o.OrganizationName, o.ContactPerson, o.Location}
		},
		Attr: func(o *models.OutreachInquiry, field string) (string, bool) {
			switch field {
			case "status":
				return o.Status, true
			case "course_type":
				return o.CourseType, true
			case "student_grade":
				return o.StudentGrade, true
			}
			return "", false
		},
		Number: func(o *models.OutreachInquiry, field string) (int, bool) {
			if field == "student_count" {
				return o.StudentCount, true
			}
			return 0, false
		},
		Order: map[string]func(a, b *models.OutreachInquiry) int{
			"preferred_date": func(a, b *models.OutreachInquiry) int {
				return a.PreferredDate.Compare(b.PreferredDate.Time)
			},
			"student_count": func(a, b *models.OutreachInquiry) int {
				return cmp.Compare(a.StudentCount, b.StudentCount)
			},
		},
	})
}

func classSchema() Schema[*models.InternalClass] {
	return Schema[*models.InternalClass]{
		Clone: (*models.InternalClass).Clone,
		Search: func(c *models.InternalClass) []string {
			return []string{c.Title, c.Instructor, c.Location}
		},
		Attr: func(c *models.InternalClass, field string) (string, bool) {
			switch field {
			case "course_type":
				return c.CourseType, true
			case "class_type":
				return c.ClassType, true
			case "is_active":
				return strconv.FormatBool(c.IsActive), true
			}
			return "", false
		},
		Number: func(c *models.InternalClass, field string) (int, bool) {
			if field == "current_students" {
				return c.CurrentStudents, true
			}
			return 0, false
		},
		Order: map[string]func(a, b *models.InternalClass) int{
			"schedule_date":    compareSchedule,
			"current_students": func(a, b *models.InternalClass) int { return cmp.Compare(a.CurrentStudents, b.CurrentStudents) },
			"price":            func(a, b *models.InternalClass) int { return cmp.Compare(a.Price, b.Price) },
		},
	}
}

func compareSchedule(a, b *models.InternalClass) int {
	if c := a.ScheduleDate.Compare(b.ScheduleDate.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.ScheduleTime.Since(), b.ScheduleTime.Since())
}
