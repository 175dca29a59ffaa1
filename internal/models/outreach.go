package models

import (
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Course types offered for outreach classes and internal classes.
const (
	CourseAppInventor = "app-inventor"
	CourseArduino     = "arduino"
	CourseRaspberryPi = "raspberry-pi"
	CourseAI          = "ai"
	CoursePython      = "python"
)

var CourseTypes = []string{CourseAppInventor, CourseArduino, CourseRaspberryPi, CourseAI, CoursePython}

var courseTypeDisplay = map[string]string{
	CourseAppInventor: "앱 인벤터",
	CourseArduino:     "아두이노",
	CourseRaspberryPi: "Raspberry Pi",
	CourseAI:          "AI 코딩",
	CoursePython:      "파이썬 코딩",
}

// CourseTypeDisplay returns the Korean label for a course type, or the raw value if unknown.
func CourseTypeDisplay(courseType string) string {
	if label, ok := courseTypeDisplay[courseType]; ok {
		return label
	}
	return courseType
}

var StudentGrades = []string{"초등 1-2학년", "초등 3-4학년", "초등 5-6학년", "중학생", "고등학생", "성인"}

// Outreach inquiry workflow states.
const (
	StatusReceived  = "접수대기"
	StatusReviewing = "검토중"
	StatusQuoteSent = "견적발송"
	StatusConfirmed = "확정"
	StatusCompleted = "완료"
)

const dateDisplay = "2006.01.02"

var OutreachStatuses = []string{StatusReceived, StatusReviewing, StatusQuoteSent, StatusConfirmed, StatusCompleted}

// InProgressStatuses are the states between receipt and completion.
var InProgressStatuses = []string{StatusReviewing, StatusQuoteSent, StatusConfirmed}

// IsValidStatus reports whether status is a known outreach workflow state.
func IsValidStatus(status string) bool {
	return slices.Contains(OutreachStatuses, status)
}

// OutreachInquiry requests an on-site coding class at an organization.
// Status and AdminNotes are maintained by staff.
type OutreachInquiry struct {
	Record
	Title            string    `json:"title"`
	OrganizationName string    `json:"organization_name"`
	ContactPerson    string    `json:"contact_person"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	CourseType       string    `json:"course_type"`
	StudentCount     int       `json:"student_count"`
	StudentGrade     string    `json:"student_grade"`
	PreferredDate    Date      `json:"preferred_date"`
	PreferredTime    TimeOfDay `json:"preferred_time"`
	Duration         string    `json:"duration"`
	Location         string    `json:"location"`
	Message          string    `json:"message"`
	Budget           *string   `json:"budget"`
	SpecialRequests  *string   `json:"special_requests"`
	Equipment        []string  `json:"equipment"`
	Status           string    `json:"status"`
	AdminNotes       *string   `json:"admin_notes"`
}

func (o *OutreachInquiry) ApplyDefaults() {
	if o.Status == "" {
		o.Status = StatusReceived
	}
	if o.Equipment == nil {
		o.Equipment = []string{}
	}
}

func (o OutreachInquiry) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Title, required, maxLength(200)),
		validation.Field(&o.OrganizationName, required, maxLength(100)),
		validation.Field(&o.ContactPerson, required, maxLength(50)),
		validation.Field(&o.Phone, phone()...),
		validation.Field(&o.Email, required, is.EmailFormat.Error("유효한 이메일 주소를 입력하십시오.")),
		validation.Field(&o.CourseType, required, oneOf(CourseTypes...)),
		validation.Field(&o.StudentCount, participants),
		validation.Field(&o.StudentGrade, required, oneOf(StudentGrades...)),
		validation.Field(&o.PreferredDate, present),
		validation.Field(&o.PreferredTime, present),
		validation.Field(&o.Duration, required, maxLength(50)),
		validation.Field(&o.Location, required, maxLength(200)),
		validation.Field(&o.Message, required),
		validation.Field(&o.Status, required, oneOf(OutreachStatuses...)),
	)
}

// CourseTypeDisplay returns the Korean label of the requested course.
func (o *OutreachInquiry) CourseTypeDisplay() string {
	return CourseTypeDisplay(o.CourseType)
}

// FormattedDate renders the preferred date as "2006.01.02".
func (o *OutreachInquiry) FormattedDate() string {
	if o.PreferredDate.IsZero() {
		return ""
	}
	return o.PreferredDate.Format(dateDisplay)
}

// FormattedTime renders the preferred time as "15:04".
func (o *OutreachInquiry) FormattedTime() string {
	return o.PreferredTime.String()
}

func (o *OutreachInquiry) Clone() *OutreachInquiry {
	clone := *o
	clone.Equipment = slices.Clone(o.Equipment)
	if o.Budget != nil {
		v := *o.Budget
		clone.Budget = &v
	}
	if o.SpecialRequests != nil {
		v := *o.SpecialRequests
		clone.SpecialRequests = &v
	}
	if o.AdminNotes != nil {
		v := *o.AdminNotes
		clone.AdminNotes = &v
	}
	return &clone
}
