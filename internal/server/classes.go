package server

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/codinglab/eduhub/internal/auth"
	httpmiddleware "github.com/codinglab/eduhub/internal/http"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	msgClassNotFound      = "수업을 찾을 수 없습니다."
	msgClassFull          = "정원이 마감되었습니다."
	msgInvalidCourseType  = "유효하지 않은 과정 유형입니다."
	msgEnrollmentAccepted = "수업 신청이 완료되었습니다."

	popularLimit = 5
)

type classView struct {
	*models.InternalClass
	DiscountedPrice   int    `json:"discounted_price"`
	EnrollmentRate    int    `json:"enrollment_rate"`
	AvailableSeats    int    `json:"available_seats"`
	IsFull            bool   `json:"is_full"`
	FormattedSchedule string `json:"formatted_schedule"`
	CourseTypeDisplay string `json:"course_type_display"`
}

func presentClass(c *models.InternalClass, _ access) any {
	return newClassView(c)
}

func newClassView(c *models.InternalClass) classView {
	return classView{
		InternalClass:     c,
		DiscountedPrice:   c.DiscountedPrice(),
		EnrollmentRate:    c.EnrollmentRate(),
		AvailableSeats:    c.AvailableSeats(),
		IsFull:            c.IsFull(),
		FormattedSchedule: c.FormattedSchedule(),
		CourseTypeDisplay: models.CourseTypeDisplay(c.CourseType),
	}
}

func classKind(st store.ClassStore) Kind[*models.InternalClass] {
	return Kind[*models.InternalClass]{
		Name:       "class",
		NotFound:   msgClassNotFound,
		Store:      st,
		New:        func() *models.InternalClass { return &models.InternalClass{IsActive: true} },
		Clone:      (*models.InternalClass).Clone,
		Present:    presentClass,
		Filters:    []string{"course_type", "class_type"},
		Orderings:  []string{"created_at", "schedule_date", "current_students", "price"},
		Unowned:    true,
		CreateGate: auth.RequireStaff,
		Forbidden:  func(auth.Action) string { return httpmiddleware.MsgPermissionDenied },
	}
}

// classes serves internal classes. Reads are public; changes are staff only
// because classes have no owner.
type classes struct {
	*resources[*models.InternalClass]

	store store.ClassStore
	now   func() time.Time
}

func newClasses(srv *Server, st store.ClassStore) *classes {
	return &classes{
		resources: newResources(srv, classKind(st)),
		store:     st,
		now:       time.Now,
	}
}

func (c *classes) Routes(r chi.Router) {
	r.Get("/", c.list)
	r.Post("/", c.create)
	r.Get("/available/", c.available)
	r.Get("/by_course_type/", c.byCourseType)
	r.Get("/popular/", c.popular)
	r.Get("/{id:[0-9]+}/", c.retrieve)
	r.Put("/{id:[0-9]+}/", c.update)
	r.Patch("/{id:[0-9]+}/", c.update)
	r.Delete("/{id:[0-9]+}/", c.delete)
	r.With(c.srv.limit).Post("/{id:[0-9]+}/enroll/", c.enroll)
}

// list shows active classes. Staff see every class and may filter on is_active.
func (c *classes) list(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	opts := c.listOptions(r)
	switch v := r.URL.Query().Get("is_active"); {
	case !isStaff(p):
		opts.Filters["is_active"] = "true"
	case v == "true" || v == "false":
		opts.Filters["is_active"] = v
	}
	c.writePage(w, r, opts, p)
}

func (c *classes) retrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpmiddleware.Error(w, r, http.StatusNotFound, msgClassNotFound)
		return
	}

	class, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpmiddleware.Error(w, r, http.StatusNotFound, msgClassNotFound)
			return
		}
		httpmiddleware.InternalError(w, r, err)
		return
	}
	if !class.IsActive && !isStaff(auth.PrincipalFromContext(ctx)) {
		httpmiddleware.Error(w, r, http.StatusNotFound, msgClassNotFound)
		return
	}

	httpmiddleware.WriteJSON(w, r, http.StatusOK, newClassView(class))
}

func (c *classes) available(w http.ResponseWriter, r *http.Request) {
	list, err := c.store.ListAvailable(r.Context(), c.now())
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, r, http.StatusOK, classViews(list))
}

func (c *classes) byCourseType(w http.ResponseWriter, r *http.Request) {
	courseType := r.URL.Query().Get("course_type")
	if !slices.Contains(models.CourseTypes, courseType) {
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgInvalidCourseType)
		return
	}

	list, _, err := c.store.List(r.Context(), store.ListOptions{
		Filters:  map[string]string{"course_type": courseType, "is_active": "true"},
		Ordering: "schedule_date",
	})
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, r, http.StatusOK, classViews(list))
}

func (c *classes) popular(w http.ResponseWriter, r *http.Request) {
	list, err := c.store.ListPopular(r.Context(), popularLimit)
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, r, http.StatusOK, classViews(list))
}

func classViews(list []*models.InternalClass) []classView {
	return lo.Map(list, func(class *models.InternalClass, _ int) classView { return newClassView(class) })
}

type enrollmentResponse struct {
	Message   string    `json:"message"`
	InquiryID int64     `json:"inquiry_id"`
	Class     classView `json:"class"`
}

// enroll turns the request into an outreach inquiry and takes a seat in the
// class. Anonymous callers may enroll; signed-in callers own the inquiry.
func (c *classes) enroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpmiddleware.Error(w, r, http.StatusNotFound, msgClassNotFound)
		return
	}

	var req models.Enrollment
	if err := httpmiddleware.DecodeJSON(w, r, &req); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.BodyProblem(err))
		return
	}
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.ValidationProblem(err))
		return
	}

	class, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.srv.metrics.RecordEnrollment(ctx, "not_found")
			httpmiddleware.Error(w, r, http.StatusNotFound, msgClassNotFound)
			return
		}
		httpmiddleware.InternalError(w, r, err)
		return
	}
	if !class.IsActive {
		c.srv.metrics.RecordEnrollment(ctx, "not_found")
		httpmiddleware.Error(w, r, http.StatusNotFound, msgClassNotFound)
		return
	}

	var owner *uuid.UUID
	if p.IsAuthenticated() {
		ownerID := p.ID
		owner = &ownerID
	}
	inquiry := class.EnrollmentInquiry(req, owner)
	if err := inquiry.Validate(); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.ValidationProblem(err))
		return
	}

	updated, err := c.store.Enroll(ctx, id, inquiry)
	switch {
	case errors.Is(err, store.ErrClassFull):
		c.srv.metrics.RecordEnrollment(ctx, "full")
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgClassFull)
		return
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrClassInactive):
		c.srv.metrics.RecordEnrollment(ctx, "not_found")
		httpmiddleware.Error(w, r, http.StatusNotFound, msgClassNotFound)
		return
	case err != nil:
		httpmiddleware.InternalError(w, r, err)
		return
	}

	c.srv.metrics.RecordEnrollment(ctx, "ok")
	c.srv.metrics.RecordCreated(ctx, "outreach")
	log.Ctx(ctx).Info().
		Int64("class_id", id).
		Int64("inquiry_id", inquiry.ID).
		Int("current_students", updated.CurrentStudents).
		Msg("Class enrollment accepted")

	httpmiddleware.WriteJSON(w, r, http.StatusCreated, enrollmentResponse{
		Message:   msgEnrollmentAccepted,
		InquiryID: inquiry.ID,
		Class:     newClassView(updated),
	})
}
