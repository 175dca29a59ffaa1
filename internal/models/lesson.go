package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Lesson inquiry formats.
const (
	LessonTypeOffline  = "offline"
	LessonTypeOnline   = "online"
	LessonTypeWorkshop = "workshop"
	LessonTypeCoaching = "coaching"
	LessonTypeEtc      = "etc"
)

var LessonTypes = []string{LessonTypeOffline, LessonTypeOnline, LessonTypeWorkshop, LessonTypeCoaching, LessonTypeEtc}

// LessonInquiry asks for a lecture, workshop or coaching session.
// PreferredDate is free text because requesters write things like "3월 중순 평일".
type LessonInquiry struct {
	Record
	Title            string `json:"title"`
	Description      string `json:"description"`
	InquiryType      string `json:"inquiry_type"`
	RequesterName    string `json:"requester_name"`
	TargetAudience   string `json:"target_audience"`
	PreferredDate    string `json:"preferred_date"`
	ParticipantCount *int   `json:"participant_count"`
}

func (l *LessonInquiry) ApplyDefaults() {
	if l.InquiryType == "" {
		l.InquiryType = LessonTypeOffline
	}
}

func (l LessonInquiry) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Title, required, maxLength(200)),
		validation.Field(&l.Description, required),
		validation.Field(&l.InquiryType, required, oneOf(LessonTypes...)),
		validation.Field(&l.RequesterName, required, maxLength(100)),
		validation.Field(&l.TargetAudience, maxLength(100)),
		validation.Field(&l.PreferredDate, maxLength(100)),
		validation.Field(&l.ParticipantCount, participants),
	)
}

func (l *LessonInquiry) Clone() *LessonInquiry {
	clone := *l
	if l.ParticipantCount != nil {
		n := *l.ParticipantCount
		clone.ParticipantCount = &n
	}
	return &clone
}
