package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/codinglab/eduhub/internal/auth"
	httpmiddleware "github.com/codinglab/eduhub/internal/http"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const msgInvalidStatus = "유효하지 않은 상태입니다."

type statusUpdate struct {
	Status string `json:"status"`
}

// updateStatus lets staff move an outreach inquiry through its workflow
// without touching any other field.
func updateStatus(h *resources[*models.OutreachInquiry]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.PrincipalFromContext(ctx)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpmiddleware.Error(w, r, http.StatusNotFound, h.kind.NotFound)
			return
		}

		rec, err := h.kind.Store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				h.authorize(w, r, auth.ActionPartialUpdate, auth.Decision{Reason: auth.ReasonNotFound})
				return
			}
			httpmiddleware.InternalError(w, r, err)
			return
		}
		if !h.authorize(w, r, auth.ActionPartialUpdate, auth.RequireStaff(p)) {
			return
		}

		var body statusUpdate
		if err := httpmiddleware.DecodeJSON(w, r, &body); err != nil {
			httpmiddleware.WriteProblem(w, r, httpmiddleware.BodyProblem(err))
			return
		}
		if !models.IsValidStatus(body.Status) {
			httpmiddleware.Error(w, r, http.StatusBadRequest, msgInvalidStatus)
			return
		}

		previous := rec.Status
		rec.Status = body.Status
		if err := h.kind.Store.Update(ctx, rec); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpmiddleware.Error(w, r, http.StatusNotFound, h.kind.NotFound)
				return
			}
			httpmiddleware.InternalError(w, r, err)
			return
		}

		log.Ctx(ctx).Info().
			Int64("id", rec.ID).
			Str("from", previous).
			Str("to", rec.Status).
			Msg("Outreach status changed")

		httpmiddleware.WriteJSON(w, r, http.StatusOK, h.present(rec, p))
	}
}
