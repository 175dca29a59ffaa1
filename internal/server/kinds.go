package server

import (
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/samber/lo"
)

type inquiryView struct {
	*models.Inquiry
	access
}

func inquiryKind(st store.ResourceStore[*models.Inquiry]) Kind[*models.Inquiry] {
	return Kind[*models.Inquiry]{
		Name:     "inquiry",
		NotFound: "견적 문의를 찾을 수 없습니다.",
		Store:    st,
		New:      func() *models.Inquiry { return &models.Inquiry{} },
		Clone:    (*models.Inquiry).Clone,
		Present: func(i *models.Inquiry, a access) any {
			return inquiryView{Inquiry: i, access: a}
		},
		Filters:   []string{"inquiry_type"},
		Orderings: []string{"created_at"},
		GroupBy:   map[string][]string{"inquiry_type": models.InquiryTypes},
	}
}

type lessonView struct {
	*models.LessonInquiry
	access
}

func lessonKind(st store.ResourceStore[*models.LessonInquiry]) Kind[*models.LessonInquiry] {
	return Kind[*models.LessonInquiry]{
		Name:     "lesson",
		NotFound: "강의 문의를 찾을 수 없습니다.",
		Store:    st,
		New:      func() *models.LessonInquiry { return &models.LessonInquiry{} },
		Clone:    (*models.LessonInquiry).Clone,
		Present: func(l *models.LessonInquiry, a access) any {
			return lessonView{LessonInquiry: l, access: a}
		},
		Filters:   []string{"inquiry_type"},
		Orderings: []string{"created_at"},
		GroupBy:   map[string][]string{"inquiry_type": models.LessonTypes},
		Sum:       []string{"participant_count"},
		StatsExtra: func(st *store.Stats, body map[string]any) {
			body["total_participants"] = st.Sums["participant_count"]
		},
	}
}

type outreachView struct {
	*models.OutreachInquiry
	access
	CourseTypeDisplay string `json:"course_type_display"`
	FormattedDate     string `json:"formatted_date"`
	FormattedTime     string `json:"formatted_time"`
}

func presentOutreach(o *models.OutreachInquiry, a access) any {
	if !a.staff {
		o = o.Clone()
		o.AdminNotes = nil
	}
	return outreachView{
		OutreachInquiry:   o,
		access:            a,
		CourseTypeDisplay: o.CourseTypeDisplay(),
		FormattedDate:     o.FormattedDate(),
		FormattedTime:     o.FormattedTime(),
	}
}

func outreachKind(st store.ResourceStore[*models.OutreachInquiry]) Kind[*models.OutreachInquiry] {
	return Kind[*models.OutreachInquiry]{
		Name:      "outreach",
		NotFound:  "출강 문의를 찾을 수 없습니다.",
		Store:     st,
		New:       func() *models.OutreachInquiry { return &models.OutreachInquiry{} },
		Clone:     (*models.OutreachInquiry).Clone,
		Present:   presentOutreach,
		Filters:   []string{"status", "course_type", "student_grade"},
		Orderings: []string{"created_at", "preferred_date", "student_count"},
		GroupBy: map[string][]string{
			"status":      models.OutreachStatuses,
			"course_type": models.CourseTypes,
		},
		Sum: []string{"student_count"},
		Protect: func(dst, src *models.OutreachInquiry) {
			dst.Status = src.Status
			dst.AdminNotes = src.AdminNotes
		},
		StatsExtra: outreachStats,
	}
}

func outreachStats(st *store.Stats, body map[string]any) {
	breakdown := body["breakdown"].(map[string]map[string]int)
	status := breakdown["status"]

	body["total_inquiries"] = st.Total
	body["total_students"] = st.Sums["student_count"]
	body["status_breakdown"] = status
	body["course_type_breakdown"] = breakdown["course_type"]
	body["pending_count"] = status[models.StatusReceived]
	body["in_progress_count"] = lo.SumBy(models.InProgressStatuses, func(s string) int { return status[s] })
	body["completed_count"] = status[models.StatusCompleted]
}
