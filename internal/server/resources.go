package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/codinglab/eduhub/internal/auth"
	httpmiddleware "github.com/codinglab/eduhub/internal/http"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/codinglab/eduhub/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

const recentLimit = 5

const (
	msgRejectedValue = "허용되지 않는 값입니다."
	msgDuplicate     = "이미 존재하는 항목입니다."
)

// Resource is a record served through the generic handlers.
type Resource interface {
	models.Resource
	auth.Owned
	ApplyDefaults()
	Validate() error
}

// access carries what the requesting principal may do with one record.
type access struct {
	IsOwner bool `json:"is_owner"`
	CanEdit bool `json:"can_edit"`

	staff bool
}

func accessFor(rec auth.Owned, p *auth.Principal) access {
	return access{
		IsOwner: auth.IsOwner(rec, p),
		CanEdit: auth.CanEdit(rec, p),
		staff:   isStaff(p),
	}
}

func isStaff(p *auth.Principal) bool {
	return p.IsAuthenticated() && p.IsStaff
}

// Kind describes one resource type: where it is stored, how it is shown and
// which query parameters it accepts.
type Kind[T Resource] struct {
	Name     string // metric label
	NotFound string
	Store    store.ResourceStore[T]

	New     func() T
	Clone   func(T) T
	Present func(T, access) any

	Filters   []string // exact-match query parameters
	Orderings []string // fields accepted by ?ordering=
	GroupBy   map[string][]string
	Sum       []string

	// Protect copies staff-only fields from src to dst for non-staff writers.
	Protect func(dst, src T)
	// Unowned kinds never record the creator as owner.
	Unowned bool
	// CreateGate overrides the create rule, which otherwise allows anyone.
	CreateGate func(*auth.Principal) auth.Decision
	// Forbidden overrides the default 403 detail for an action.
	Forbidden func(auth.Action) string
	// StatsExtra adds kind specific members to the statistics body.
	StatsExtra func(st *store.Stats, body map[string]any)
}

type resources[T Resource] struct {
	kind Kind[T]
	srv  *Server
}

func newResources[T Resource](srv *Server, kind Kind[T]) *resources[T] {
	return &resources[T]{kind: kind, srv: srv}
}

// Routes mounts the uniform resource surface.
func (h *resources[T]) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.With(h.srv.limit).Post("/", h.create)
	r.With(h.srv.limit).Post("/create/", h.create)
	r.Get("/my_inquiries/", h.mine)
	r.Get("/statistics/", h.statistics)
	r.Get("/recent/", h.recent)
	r.Get("/{id:[0-9]+}/", h.retrieve)
	r.Put("/{id:[0-9]+}/update/", h.update)
	r.Patch("/{id:[0-9]+}/update/", h.update)
	r.Delete("/{id:[0-9]+}/delete/", h.delete)
}

func (h *resources[T]) present(rec T, p *auth.Principal) any {
	return h.kind.Present(rec, accessFor(rec, p))
}

func (h *resources[T]) presentAll(recs []T, p *auth.Principal) []any {
	return lo.Map(recs, func(rec T, _ int) any { return h.present(rec, p) })
}

func (h *resources[T]) loader(id int64) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return h.kind.Store.Get(ctx, id)
	}
}

// authorize records d and writes the denial when it is not allowed.
func (h *resources[T]) authorize(w http.ResponseWriter, r *http.Request, action auth.Action, d auth.Decision) bool {
	h.srv.metrics.RecordDecision(r.Context(), action.String(), outcome(d))
	if d.Allowed {
		return true
	}

	detail := httpmiddleware.MsgPermissionDenied
	switch d.Reason {
	case auth.ReasonNotFound:
		detail = h.kind.NotFound
	case auth.ReasonUnauthenticated:
		detail = httpmiddleware.MsgNotAuthenticated
	case auth.ReasonForbidden:
		if h.kind.Forbidden != nil {
			detail = h.kind.Forbidden(action)
		} else {
			detail = forbiddenDetail(action)
		}
	}

	log.Ctx(r.Context()).Debug().
		Str("kind", h.kind.Name).
		Stringer("action", action).
		Stringer("reason", d.Reason).
		Msg("Access denied")

	httpmiddleware.Error(w, r, d.Status(), detail)
	return false
}

func outcome(d auth.Decision) string {
	if d.Allowed {
		return "allow"
	}
	return d.Reason.String()
}

func forbiddenDetail(action auth.Action) string {
	switch action {
	case auth.ActionRetrieve:
		return "이 문의를 조회할 권한이 없습니다."
	case auth.ActionDelete:
		return "이 문의를 삭제할 권한이 없습니다."
	default:
		return "이 문의를 수정할 권한이 없습니다."
	}
}

// evaluate loads the record named in the URL and applies the policy to it.
func (h *resources[T]) evaluate(w http.ResponseWriter, r *http.Request, action auth.Action) (T, bool) {
	var zero T

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpmiddleware.Error(w, r, http.StatusNotFound, h.kind.NotFound)
		return zero, false
	}

	ctx, span := telemetry.StartSpan(r.Context(), "authorize "+h.kind.Name,
		attribute.String("eduhub.action", action.String()),
		attribute.Int64("eduhub.id", id),
	)
	rec, d, err := auth.Evaluate(ctx, action, auth.PrincipalFromContext(ctx), h.loader(id))
	span.SetAttributes(attribute.String("eduhub.decision", outcome(d)))
	telemetry.EndSpan(span, err)
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return zero, false
	}
	if !h.authorize(w, r, action, d) {
		return zero, false
	}
	return rec, true
}

// listOptions reads search, filters and ordering from the query string.
// Parameters the kind does not declare are ignored.
func (h *resources[T]) listOptions(r *http.Request) store.ListOptions {
	q := r.URL.Query()
	opts := store.ListOptions{
		Search:  strings.TrimSpace(q.Get("search")),
		Filters: map[string]string{},
	}
	for _, field := range h.kind.Filters {
		if v := strings.TrimSpace(q.Get(field)); v != "" {
			opts.Filters[field] = v
		}
	}
	if ordering := q.Get("ordering"); lo.Contains(h.kind.Orderings, strings.TrimPrefix(ordering, "-")) {
		opts.Ordering = ordering
	}
	return opts
}

func (h *resources[T]) list(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if !h.authorize(w, r, auth.ActionList, auth.Decide(auth.ActionList, p, nil)) {
		return
	}
	h.writePage(w, r, h.listOptions(r), p)
}

func (h *resources[T]) mine(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if !h.authorize(w, r, auth.ActionListOwn, auth.Decide(auth.ActionListOwn, p, nil)) {
		return
	}
	opts := h.listOptions(r)
	opts.OwnerID = &p.ID
	h.writePage(w, r, opts, p)
}

func (h *resources[T]) writePage(w http.ResponseWriter, r *http.Request, opts store.ListOptions, p *auth.Principal) {
	pg, problem := parsePage(r)
	if problem != nil {
		httpmiddleware.WriteProblem(w, r, problem)
		return
	}
	opts.Offset, opts.Limit = pg.offset(), pg.size

	recs, count, err := h.kind.Store.List(r.Context(), opts)
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}
	if !pg.inRange(count) {
		httpmiddleware.Error(w, r, http.StatusNotFound, msgInvalidPage)
		return
	}

	httpmiddleware.WriteJSON(w, r, http.StatusOK, h.srv.newPage(r, pg, count, h.presentAll(recs, p)))
}

func (h *resources[T]) recent(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if !h.authorize(w, r, auth.ActionList, auth.Decide(auth.ActionList, p, nil)) {
		return
	}

	recs, _, err := h.kind.Store.List(r.Context(), store.ListOptions{Limit: recentLimit})
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, r, http.StatusOK, h.presentAll(recs, p))
}

func (h *resources[T]) statistics(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if !h.authorize(w, r, auth.ActionList, auth.Decide(auth.ActionList, p, nil)) {
		return
	}

	st, err := h.kind.Store.Stats(r.Context(), store.StatsOptions{
		GroupBy: lo.Keys(h.kind.GroupBy),
		Sum:     h.kind.Sum,
	})
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	breakdown := make(map[string]map[string]int, len(h.kind.GroupBy))
	for field, choices := range h.kind.GroupBy {
		breakdown[field] = zeroFilled(choices, st.Breakdown[field])
	}

	body := map[string]any{
		"total":     st.Total,
		"breakdown": breakdown,
	}
	if h.kind.StatsExtra != nil {
		h.kind.StatsExtra(st, body)
	}
	httpmiddleware.WriteJSON(w, r, http.StatusOK, body)
}

// zeroFilled reports every known choice, including those with no records.
func zeroFilled(choices []string, counts map[string]int) map[string]int {
	return lo.Assign(lo.Associate(choices, func(c string) (string, int) { return c, 0 }), counts)
}

func (h *resources[T]) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)

	d := auth.Decide(auth.ActionCreate, p, nil)
	if h.kind.CreateGate != nil {
		d = h.kind.CreateGate(p)
	}
	if !h.authorize(w, r, auth.ActionCreate, d) {
		return
	}

	rec := h.kind.New()
	if err := httpmiddleware.DecodeJSON(w, r, rec); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.BodyProblem(err))
		return
	}

	*rec.Base() = models.Record{}
	if p.IsAuthenticated() && !h.kind.Unowned {
		owner := p.ID
		rec.Base().OwnerID = &owner
	}
	rec.ApplyDefaults()
	if h.kind.Protect != nil && !isStaff(p) {
		defaults := h.kind.New()
		defaults.ApplyDefaults()
		h.kind.Protect(rec, defaults)
	}

	if err := rec.Validate(); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.ValidationProblem(err))
		return
	}

	if err := h.kind.Store.Create(ctx, rec); err != nil {
		writeStoreError(w, r, err)
		return
	}

	h.srv.metrics.RecordCreated(ctx, h.kind.Name)
	log.Ctx(ctx).Info().
		Str("kind", h.kind.Name).
		Int64("id", rec.Base().ID).
		Bool("anonymous", rec.Base().OwnerID == nil).
		Msg("Resource created")

	httpmiddleware.WriteJSON(w, r, http.StatusCreated, h.present(rec, p))
}

func (h *resources[T]) retrieve(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.evaluate(w, r, auth.ActionRetrieve)
	if !ok {
		return
	}
	httpmiddleware.WriteJSON(w, r, http.StatusOK, h.present(rec, auth.PrincipalFromContext(r.Context())))
}

// update handles PUT as a full replacement and PATCH as a merge onto the stored
// record. The shared record columns and any protected fields are kept.
func (h *resources[T]) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)

	action := auth.ActionUpdate
	if r.Method == http.MethodPatch {
		action = auth.ActionPartialUpdate
	}

	existing, ok := h.evaluate(w, r, action)
	if !ok {
		return
	}

	next := h.kind.New()
	if action == auth.ActionPartialUpdate {
		next = h.kind.Clone(existing)
	}
	if err := httpmiddleware.DecodeJSON(w, r, next); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.BodyProblem(err))
		return
	}

	*next.Base() = *existing.Base()
	if action == auth.ActionUpdate {
		next.ApplyDefaults()
	}
	if h.kind.Protect != nil && !isStaff(p) {
		h.kind.Protect(next, existing)
	}

	if err := next.Validate(); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.ValidationProblem(err))
		return
	}

	if err := h.kind.Store.Update(ctx, next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpmiddleware.Error(w, r, http.StatusNotFound, h.kind.NotFound)
			return
		}
		writeStoreError(w, r, err)
		return
	}

	log.Ctx(ctx).Info().Str("kind", h.kind.Name).Int64("id", next.Base().ID).Msg("Resource updated")

	httpmiddleware.WriteJSON(w, r, http.StatusOK, h.present(next, p))
}

func (h *resources[T]) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, ok := h.evaluate(w, r, auth.ActionDelete)
	if !ok {
		return
	}

	if err := h.kind.Store.Delete(ctx, rec.Base().ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpmiddleware.Error(w, r, http.StatusNotFound, h.kind.NotFound)
			return
		}
		httpmiddleware.InternalError(w, r, err)
		return
	}

	h.srv.metrics.RecordDeleted(ctx, h.kind.Name)
	log.Ctx(ctx).Info().Str("kind", h.kind.Name).Int64("id", rec.Base().ID).Msg("Resource deleted")

	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError answers a failed write. Values the store rejected are a 400
// naming the field; anything else is a 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var constraint *store.ConstraintError
	switch {
	case errors.As(err, &constraint):
		p := httpmiddleware.NewProblem(http.StatusBadRequest, msgRejectedValue)
		p.Errors = map[string]string{constraint.Field: msgRejectedValue}
		httpmiddleware.WriteProblem(w, r, p)
	case errors.Is(err, store.ErrAlreadyExists):
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgDuplicate)
	case errors.Is(err, store.ErrClassFull):
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgClassFull)
	default:
		httpmiddleware.InternalError(w, r, err)
	}
}
