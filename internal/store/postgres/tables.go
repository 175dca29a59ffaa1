package postgres

import (
	"github.com/codinglab/eduhub/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewInquiryStore creates a PostgreSQL-backed store for general inquiries.
func NewInquiryStore(pool *pgxpool.Pool) *ResourceStore[*models.Inquiry] {
	return newResourceStore(pool, inquiryTable())
}

// NewLessonStore creates a PostgreSQL-backed store for lesson inquiries.
func NewLessonStore(pool *pgxpool.Pool) *ResourceStore[*models.LessonInquiry] {
	return newResourceStore(pool, lessonTable())
}

// NewOutreachStore creates a PostgreSQL-backed store for outreach inquiries.
func NewOutreachStore(pool *pgxpool.Pool) *ResourceStore[*models.OutreachInquiry] {
	return newResourceStore(pool, outreachTable())
}

func inquiryTable() *table[*models.Inquiry] {
	return &table[*models.Inquiry]{
		name:    "inquiries",
		columns: []string{"title", "description", "inquiry_type", "requester_name"},
		newRec:  func() *models.Inquiry { return &models.Inquiry{} },
		values: func(i *models.Inquiry) []any {
			return []any{i.Title, i.Description, i.InquiryType, i.RequesterName}
		},
		dest: func(i *models.Inquiry) []any {
			return []any{&i.Title, &i.Description, &i.InquiryType, &i.RequesterName}
		},
		search:  []string{"title", "requester_name"},
		filters: map[string]string{"inquiry_type": "inquiry_type"},
	}
}

func lessonTable() *table[*models.LessonInquiry] {
	return &table[*models.LessonInquiry]{
		name: "lesson_inquiries",
		columns: []string{
			"title", "description", "inquiry_type", "requester_name",
			"target_audience", "preferred_date", "participant_count",
		},
		newRec: func() *models.LessonInquiry { return &models.LessonInquiry{} },
		values: func(l *models.LessonInquiry) []any {
			return []any{
				l.Title, l.Description, l.InquiryType, l.RequesterName,
				l.TargetAudience, l.PreferredDate, l.ParticipantCount,
			}
		},
		dest: func(l *models.LessonInquiry) []any {
			return []any{
				&l.Title, &l.Description, &l.InquiryType, &l.RequesterName,
				&l.TargetAudience, &l.PreferredDate, &l.ParticipantCount,
			}
		},
		search:  []string{"title", "requester_name", "target_audience"},
		filters: map[string]string{"inquiry_type": "inquiry_type"},
		sums:    map[string]string{"participant_count": "participant_count"},
	}
}

func outreachTable() *table[*models.OutreachInquiry] {
	return &table[*models.OutreachInquiry]{
		name: "outreach_inquiries",
		columns: []string{
			"title", "organization_name", "contact_person", "phone", "email",
			"course_type", "student_count", "student_grade",
			"preferred_date", "preferred_time", "duration", "location", "message",
			"budget", "special_requests", "equipment", "status", "admin_notes",
		},
		newRec: func() *models.OutreachInquiry { return &models.OutreachInquiry{} },
		values: func(o *models.OutreachInquiry) []any {
			equipment := o.Equipment
			if equipment == nil {
				equipment = []string{}
			}
			return []any{
				o.Title, o.OrganizationName, o.ContactPerson, o.Phone, o.Email,
				o.CourseType, o.StudentCount, o.StudentGrade,
				o.PreferredDate.Time, clockValue(o.PreferredTime), o.Duration, o.Location, o.Message,
				o.Budget, o.SpecialRequests, equipment, o.Status, o.AdminNotes,
			}
		},
		dest: func(o *models.OutreachInquiry) []any {
			return []any{
				&o.Title, &o.OrganizationName, &o.ContactPerson, &o.Phone, &o.Email,
				&o.CourseType, &o.StudentCount, &o.StudentGrade,
				&o.PreferredDate.Time, &clock{&o.PreferredTime}, &o.Duration, &o.Location, &o.Message,
				&o.Budget, &o.SpecialRequests, &o.Equipment, &o.Status, &o.AdminNotes,
			}
		},
		search: []string{"title", "organization_name", "contact_person", "location"},
		filters: map[string]string{
			"status":        "status",
			"course_type":   "course_type",
			"student_grade": "student_grade",
		},
		orders: map[string]string{
			"preferred_date": "preferred_date",
			"student_count":  "student_count",
		},
		sums: map[string]string{"student_count": "student_count"},
	}
}

func classTable() *table[*models.InternalClass] {
	return &table[*models.InternalClass]{
		name: "internal_classes",
		columns: []string{
			"title", "instructor", "course_type", "class_type", "target_grade", "description",
			"max_students", "current_students", "schedule_date", "schedule_time",
			"duration_hours", "sessions", "price", "discount_rate",
			"location", "youtube_url", "is_active",
		},
		newRec: func() *models.InternalClass { return &models.InternalClass{} },
		values: func(c *models.InternalClass) []any {
			return []any{
				c.Title, c.Instructor, c.CourseType, c.ClassType, c.TargetGrade, c.Description,
				c.MaxStudents, c.CurrentStudents, c.ScheduleDate.Time, clockValue(c.ScheduleTime),
				c.DurationHours, c.Sessions, c.Price, c.DiscountRate,
				c.Location, c.YoutubeURL, c.IsActive,
			}
		},
		dest: func(c *models.InternalClass) []any {
			return []any{
				&c.Title, &c.Instructor, &c.CourseType, &c.ClassType, &c.TargetGrade, &c.Description,
				&c.MaxStudents, &c.CurrentStudents, &c.ScheduleDate.Time, &clock{&c.ScheduleTime},
				&c.DurationHours, &c.Sessions, &c.Price, &c.DiscountRate,
				&c.Location, &c.YoutubeURL, &c.IsActive,
			}
		},
		search: []string{"title", "instructor", "location"},
		filters: map[string]string{
			"course_type": "course_type",
			"class_type":  "class_type",
			"is_active":   "is_active",
		},
		orders: map[string]string{
			"schedule_date":    "schedule_date, schedule_time",
			"current_students": "current_students",
			"price":            "price",
		},
	}
}
