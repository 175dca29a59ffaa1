package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"
)

const (
	ProblemContentType = "application/problem+json"

	maxBodyBytes = 1 << 20
)

// Response details shared by every endpoint.
const (
	MsgNotAuthenticated = "인증 정보가 제공되지 않았습니다."
	MsgPermissionDenied = "이 작업을 수행할 권한(permission)이 없습니다."
	MsgNotFound         = "찾을 수 없습니다."
	MsgBadBody          = "요청 본문을 해석할 수 없습니다."
	msgServerError      = "서버 오류가 발생했습니다."
	msgValidation       = "입력값을 확인해 주세요."
)

// ErrBadBody is returned by DecodeJSON for bodies that are not a JSON object.
var ErrBadBody = errors.New("malformed request body")

// Problem is an RFC 7807 error body.
type Problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// NewProblem creates a problem for status with a human readable detail.
func NewProblem(status int, detail string) *Problem {
	return &Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// ValidationProblem turns ozzo validation errors into a 400 with a field map.
// Errors of any other type become a 400 carrying only the detail.
func ValidationProblem(err error) *Problem {
	p := NewProblem(http.StatusBadRequest, msgValidation)

	var fields validation.Errors
	if !errors.As(err, &fields) {
		p.Detail = err.Error()
		return p
	}

	p.Errors = make(map[string]string, len(fields))
	flatten("", fields, p.Errors)
	return p
}

func flatten(prefix string, fields validation.Errors, out map[string]string) {
	for name, err := range fields {
		if err == nil {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flatten(key, nested, out)
			continue
		}
		out[key] = err.Error()
	}
}

// WriteProblem writes p as application/problem+json.
func WriteProblem(w http.ResponseWriter, r *http.Request, p *Problem) {
	if p.Status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Int("status", p.Status).Str("detail", p.Detail).Msg("Request failed")
	}
	w.Header().Set("Content-Type", ProblemContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode problem response")
	}
}

// Error writes a problem response for status with detail.
func Error(w http.ResponseWriter, r *http.Request, status int, detail string) {
	WriteProblem(w, r, NewProblem(status, detail))
}

// InternalError logs err and answers 500 without leaking it to the client.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error")
	WriteProblem(w, r, NewProblem(http.StatusInternalServerError, msgServerError))
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}

// DecodeJSON reads a JSON object from the request body into dst.
// Unknown fields are ignored.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadBody)
		}
		return fmt.Errorf("%w: %w", ErrBadBody, err)
	}
	return nil
}

// BodyProblem describes a DecodeJSON failure. A value of the wrong JSON type
// is reported against its field.
func BodyProblem(err error) *Problem {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		p := NewProblem(http.StatusBadRequest, msgValidation)
		p.Errors = map[string]string{typeErr.Field: "올바른 형식이 아닙니다."}
		return p
	}
	return NewProblem(http.StatusBadRequest, MsgBadBody)
}
