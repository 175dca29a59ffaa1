package models

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

// Class delivery formats.
const (
	ClassTypeOffline = "offline"
	ClassTypeOnline  = "online"
)

var ClassTypes = []string{ClassTypeOffline, ClassTypeOnline}

// InternalClass is a class run by the academy that visitors can enroll in.
// Classes have no owner, so only staff may change them.
type InternalClass struct {
	Record
	Title           string    `json:"title" yaml:"title"`
	Instructor      string    `json:"instructor" yaml:"instructor"`
	CourseType      string    `json:"course_type" yaml:"course_type"`
	ClassType       string    `json:"class_type" yaml:"class_type"`
	TargetGrade     string    `json:"target_grade" yaml:"target_grade"`
	Description     string    `json:"description" yaml:"description"`
	MaxStudents     int       `json:"max_students" yaml:"max_students"`
	CurrentStudents int       `json:"current_students" yaml:"current_students"`
	ScheduleDate    Date      `json:"schedule_date" yaml:"schedule_date"`
	ScheduleTime    TimeOfDay `json:"schedule_time" yaml:"schedule_time"`
	DurationHours   int       `json:"duration_hours" yaml:"duration_hours"`
	Sessions        int       `json:"sessions" yaml:"sessions"`
	Price           int       `json:"price" yaml:"price"`
	DiscountRate    int       `json:"discount_rate" yaml:"discount_rate"`
	Location        string    `json:"location" yaml:"location"`
	YoutubeURL      string    `json:"youtube_url" yaml:"youtube_url"`
	IsActive        bool      `json:"is_active" yaml:"is_active"`
}

func (c *InternalClass) ApplyDefaults() {
	if c.ClassType == "" {
		c.ClassType = ClassTypeOffline
	}
	if c.Sessions == 0 {
		c.Sessions = 1
	}
}

func (c InternalClass) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Title, required, maxLength(200)),
		validation.Field(&c.Instructor, required, maxLength(100)),
		validation.Field(&c.CourseType, required, oneOf(CourseTypes...)),
		validation.Field(&c.ClassType, required, oneOf(ClassTypes...)),
		validation.Field(&c.TargetGrade, maxLength(50)),
		validation.Field(&c.MaxStudents, required, validation.Min(1)),
		validation.Field(&c.CurrentStudents, validation.Min(0), validation.Max(c.MaxStudents).Error("정원을 초과할 수 없습니다.")),
		validation.Field(&c.ScheduleDate, present),
		validation.Field(&c.ScheduleTime, present),
		validation.Field(&c.DurationHours, required, validation.Min(1)),
		validation.Field(&c.Sessions, validation.Min(1)),
		validation.Field(&c.Price, validation.Min(0)),
		validation.Field(&c.DiscountRate, validation.Min(0), validation.Max(100)),
		validation.Field(&c.Location, required, maxLength(200)),
		validation.Field(&c.YoutubeURL, is.URL),
	)
}

// AvailableSeats is the number of enrollments still accepted.
func (c *InternalClass) AvailableSeats() int {
	return max(c.MaxStudents-c.CurrentStudents, 0)
}

func (c *InternalClass) IsFull() bool {
	return c.CurrentStudents >= c.MaxStudents
}

// DiscountedPrice applies the discount rate, rounding down to the won.
func (c *InternalClass) DiscountedPrice() int {
	return c.Price * (100 - c.DiscountRate) / 100
}

// EnrollmentRate is the filled share of seats as a whole percentage.
func (c *InternalClass) EnrollmentRate() int {
	if c.MaxStudents == 0 {
		return 0
	}
	return c.CurrentStudents * 100 / c.MaxStudents
}

// FormattedSchedule renders the class start as "2006.01.02 15:04".
func (c *InternalClass) FormattedSchedule() string {
	if c.ScheduleDate.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s %s", c.ScheduleDate.Format(dateDisplay), c.ScheduleTime)
}

// StartsOnOrAfter reports whether the class is scheduled on day or later.
func (c *InternalClass) StartsOnOrAfter(day time.Time) bool {
	return !c.ScheduleDate.Before(NewDate(day).Time)
}

// EnrollmentInquiry converts an enrollment request for this class into an
// outreach inquiry. The caller supplies the contact details.
func (c *InternalClass) EnrollmentInquiry(contact Enrollment, owner *uuid.UUID) *OutreachInquiry {
	inquiry := &OutreachInquiry{
		Title:            "[수업 신청] " + c.Title,
		OrganizationName: contact.OrganizationName,
		ContactPerson:    contact.RequesterName,
		Phone:            contact.Phone,
		Email:            contact.Email,
		CourseType:       c.CourseType,
		StudentCount:     contact.StudentCount,
		StudentGrade:     contact.StudentGrade,
		PreferredDate:    c.ScheduleDate,
		PreferredTime:    c.ScheduleTime,
		Duration:         fmt.Sprintf("%d시간", c.DurationHours),
		Location:         c.Location,
		Message:          contact.Message,
		Equipment:        []string{},
		Status:           StatusReceived,
	}
	inquiry.OwnerID = owner
	return inquiry
}

func (c *InternalClass) Clone() *InternalClass {
	clone := *c
	return &clone
}

// Enrollment is the contact information a visitor submits to join a class.
type Enrollment struct {
	RequesterName    string `json:"requester_name"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	StudentCount     int    `json:"student_count"`
	StudentGrade     string `json:"student_grade"`
	OrganizationName string `json:"organization_name"`
	Message          string `json:"message"`
}

func (e *Enrollment) ApplyDefaults() {
	if e.StudentCount == 0 {
		e.StudentCount = 1
	}
	if e.OrganizationName == "" {
		e.OrganizationName = e.RequesterName
	}
	if e.Message == "" {
		e.Message = "수업 신청"
	}
}

func (e Enrollment) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.RequesterName, required, maxLength(50)),
		validation.Field(&e.Phone, phone()...),
		validation.Field(&e.Email, required, is.EmailFormat.Error("유효한 이메일 주소를 입력하십시오.")),
		validation.Field(&e.StudentCount, participants),
		validation.Field(&e.StudentGrade, required, oneOf(StudentGrades...)),
		validation.Field(&e.OrganizationName, maxLength(100)),
	)
}
