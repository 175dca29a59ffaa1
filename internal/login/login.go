package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/codinglab/eduhub/internal/auth"
	httpmiddleware "github.com/codinglab/eduhub/internal/http"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/codinglab/eduhub/internal/telemetry"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	msgCredentialsRequired = "이메일과 비밀번호는 필수입니다."
	msgPasswordTooShort    = "비밀번호는 8자 이상이어야 합니다."
	msgPasswordTooLong     = "비밀번호가 너무 깁니다."
	msgEmailTaken          = "이미 등록된 이메일입니다."
	msgInvalidEmail        = "유효한 이메일 주소를 입력하십시오."
	msgBadCredentials      = "이메일 또는 비밀번호가 올바르지 않습니다."
	msgRegistered          = "회원가입이 완료되었습니다. 이메일을 확인해 주세요."
	msgRefreshRequired     = "refresh 토큰이 필요합니다."
	msgInvalidRefresh      = "유효하지 않은 refresh 토큰입니다."
	msgVerified            = "이메일 인증이 완료되었습니다."
	msgInvalidVerification = "유효하지 않은 인증 토큰입니다."
	msgAlreadyVerified     = "이미 인증된 이메일입니다."
)

// Stores groups the account stores the handler needs.
type Stores struct {
	Users         store.UserStore
	Sessions      store.SessionStore
	Verifications store.VerificationStore
}

// Config holds account endpoint settings.
type Config struct {
	BaseURL    string        // Public URL used in verification links
	SessionTTL time.Duration // Lifetime of a refresh session
}

// Handler serves the account endpoints under /api/v1/auth/.
type Handler struct {
	stores  Stores
	tokens  *TokenIssuer
	mailer  Mailer
	cfg     Config
	metrics *telemetry.Metrics
}

func NewHandler(stores Stores, tokens *TokenIssuer, mailer Mailer, cfg Config) *Handler {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Handler{
		stores:  stores,
		tokens:  tokens,
		mailer:  mailer,
		cfg:     cfg,
		metrics: telemetry.GetMetrics(),
	}
}

// Routes mounts the account endpoints on r. Credential endpoints go through limit.
func (h *Handler) Routes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/register/", h.Register)
		r.Post("/login/", h.Login)
		r.Post("/token/refresh/", h.Refresh)
	})
	r.Post("/logout/", h.Logout)
	r.Get("/verify-email/{token}/", h.VerifyEmail)
	r.Get("/profile/", h.Profile)
	r.Patch("/profile/", h.UpdateProfile)
}

type userResponse struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	IsStaff       bool       `json:"is_staff"`
	EmailVerified bool       `json:"email_verified"`
	DateJoined    time.Time  `json:"date_joined"`
	LastLogin     *time.Time `json:"last_login"`
}

func presentUser(u *models.User) userResponse {
	return userResponse{
		ID:            u.UserID,
		Email:         u.Email,
		Name:          u.Name,
		IsStaff:       u.IsStaff,
		EmailVerified: u.EmailVerified,
		DateJoined:    u.CreatedAt,
		LastLogin:     u.LastLoginAt,
	}
}

type tokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Register creates a password account and signs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentials
	if err := httpmiddleware.DecodeJSON(w, r, &req); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.BodyProblem(err))
		return
	}
	req.Email = models.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if req.Email == "" || req.Password == "" {
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgCredentialsRequired)
		return
	}
	if err := validation.Validate(req.Email, is.EmailFormat); err != nil {
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgInvalidEmail)
		return
	}
	if err := validation.Validate(req.Name, validation.RuneLength(0, 150)); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.ValidationProblem(validation.Errors{"name": err}))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgPasswordTooShort)
		return
	}
	if errors.Is(err, auth.ErrPasswordTooLong) {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.ValidationProblem(validation.Errors{"password": errors.New(msgPasswordTooLong)}))
		return
	}
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	now := time.Now()
	user := &models.User{
		UserID:       uuid.Must(uuid.NewV7()),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLoginAt:  &now,
	}
	if err := h.stores.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserAlreadyExists) {
			httpmiddleware.Error(w, r, http.StatusBadRequest, msgEmailTaken)
			return
		}
		httpmiddleware.InternalError(w, r, err)
		return
	}

	if err := h.sendVerification(ctx, user); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", user.UserID.String()).Msg("Failed to send verification email")
	}

	tokens, err := h.startSession(r, user)
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	log.Ctx(ctx).Info().Str("user_id", user.UserID.String()).Msg("Registered user")

	httpmiddleware.WriteJSON(w, r, http.StatusCreated, map[string]any{
		"message": msgRegistered,
		"tokens":  tokens,
		"user":    presentUser(user),
	})
}

func (h *Handler) sendVerification(ctx context.Context, user *models.User) error {
	v := &models.EmailVerification{
		Token:     uuid.New(),
		UserID:    user.UserID,
		CreatedAt: time.Now(),
	}
	if err := h.stores.Verifications.Create(ctx, v); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	link := fmt.Sprintf("%s/api/v1/auth/verify-email/%s/", strings.TrimRight(h.cfg.BaseURL, "/"), v.Token)
	return h.mailer.SendVerification(ctx, user, link)
}

// Login checks an email and password and starts a refresh session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentials
	if err := httpmiddleware.DecodeJSON(w, r, &req); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.BodyProblem(err))
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgCredentialsRequired)
		return
	}

	user, err := h.stores.Users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		httpmiddleware.InternalError(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.metrics.RecordLogin(ctx, "failure")
		log.Ctx(ctx).Warn().Msg("Login failed")
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgBadCredentials)
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := h.stores.Users.Update(ctx, user); err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	tokens, err := h.startSession(r, user)
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	h.metrics.RecordLogin(ctx, "success")
	log.Ctx(ctx).Info().Str("user_id", user.UserID.String()).Msg("User logged in")

	httpmiddleware.WriteJSON(w, r, http.StatusOK, map[string]any{
		"tokens": tokens,
		"user":   presentUser(user),
	})
}

func (h *Handler) startSession(r *http.Request, user *models.User) (*tokenPair, error) {
	now := time.Now()
	session := &models.Session{
		SessionID:  uuid.Must(uuid.NewV7()),
		UserID:     user.UserID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(h.cfg.SessionTTL),
		LastUsedAt: now,
		UserAgent:  r.UserAgent(),
		IPAddress:  httpmiddleware.ClientIPFromContext(r.Context()),
	}
	if err := h.stores.Sessions.Create(r.Context(), session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	access, err := h.tokens.Access(user, session.SessionID)
	if err != nil {
		return nil, err
	}

	return &tokenPair{Refresh: session.SessionID.String(), Access: access}, nil
}

// Logout ends the refresh session named in the body.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.lookupRefresh(w, r, http.StatusBadRequest)
	if !ok {
		return
	}

	if p := auth.PrincipalFromContext(ctx); p.IsAuthenticated() && p.ID != session.UserID {
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgInvalidRefresh)
		return
	}

	if err := h.stores.Sessions.Delete(ctx, session.SessionID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	log.Ctx(ctx).Info().Str("user_id", session.UserID.String()).Msg("User logged out")

	w.WriteHeader(http.StatusResetContent)
}

// Refresh exchanges a refresh token for a new access token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.lookupRefresh(w, r, http.StatusUnauthorized)
	if !ok {
		return
	}

	user, err := h.stores.Users.Get(ctx, session.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		httpmiddleware.Error(w, r, http.StatusUnauthorized, msgInvalidRefresh)
		return
	}
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	access, err := h.tokens.Access(user, session.SessionID)
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	if err := h.stores.Sessions.UpdateLastUsed(ctx, session.SessionID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to update session last used")
	}

	httpmiddleware.WriteJSON(w, r, http.StatusOK, map[string]string{"access": access})
}

// lookupRefresh decodes {refresh} and loads its session. A missing token is
// always a 400; an unknown or expired one is answered with invalidStatus.
func (h *Handler) lookupRefresh(w http.ResponseWriter, r *http.Request, invalidStatus int) (*models.Session, bool) {
	var req refreshRequest
	if err := httpmiddleware.DecodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Refresh) == "" {
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgRefreshRequired)
		return nil, false
	}

	sessionID, err := uuid.Parse(strings.TrimSpace(req.Refresh))
	if err != nil {
		httpmiddleware.Error(w, r, invalidStatus, msgInvalidRefresh)
		return nil, false
	}

	session, err := h.stores.Sessions.Get(r.Context(), sessionID)
	switch {
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrSessionExpired):
		httpmiddleware.Error(w, r, invalidStatus, msgInvalidRefresh)
		return nil, false
	case err != nil:
		httpmiddleware.InternalError(w, r, err)
		return nil, false
	}

	return session, true
}

// VerifyEmail consumes a verification token from a mailed link.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := uuid.Parse(chi.URLParam(r, "token"))
	if err != nil {
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgInvalidVerification)
		return
	}

	v, err := h.stores.Verifications.Get(ctx, token)
	if errors.Is(err, store.ErrVerificationNotFound) {
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgInvalidVerification)
		return
	}
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	err = h.stores.Verifications.MarkVerified(ctx, token, time.Now())
	switch {
	case errors.Is(err, store.ErrAlreadyVerified):
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgAlreadyVerified)
		return
	case errors.Is(err, store.ErrVerificationNotFound):
		httpmiddleware.Error(w, r, http.StatusBadRequest, msgInvalidVerification)
		return
	case err != nil:
		httpmiddleware.InternalError(w, r, err)
		return
	}

	user, err := h.stores.Users.Get(ctx, v.UserID)
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}
	user.EmailVerified = true
	if err := h.stores.Users.Update(ctx, user); err != nil {
		httpmiddleware.InternalError(w, r, err)
		return
	}

	log.Ctx(ctx).Info().Str("user_id", user.UserID.String()).Msg("Email verified")

	httpmiddleware.WriteJSON(w, r, http.StatusOK, map[string]string{"message": msgVerified})
}

// Profile returns the signed-in user.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	httpmiddleware.WriteJSON(w, r, http.StatusOK, presentUser(user))
}

type profileUpdate struct {
	Name *string `json:"name"`
}

// UpdateProfile changes the signed-in user's display name.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req profileUpdate
	if err := httpmiddleware.DecodeJSON(w, r, &req); err != nil {
		httpmiddleware.WriteProblem(w, r, httpmiddleware.BodyProblem(err))
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validation.Validate(name, validation.RuneLength(0, 150)); err != nil {
			httpmiddleware.WriteProblem(w, r, httpmiddleware.ValidationProblem(validation.Errors{"name": err}))
			return
		}
		user.Name = name
		user.UpdatedAt = time.Now()
		if err := h.stores.Users.Update(r.Context(), user); err != nil {
			httpmiddleware.InternalError(w, r, err)
			return
		}
	}

	httpmiddleware.WriteJSON(w, r, http.StatusOK, presentUser(user))
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	p := auth.PrincipalFromContext(r.Context())
	if !p.IsAuthenticated() {
		httpmiddleware.Error(w, r, http.StatusUnauthorized, httpmiddleware.MsgNotAuthenticated)
		return nil, false
	}

	user, err := h.stores.Users.Get(r.Context(), p.ID)
	if errors.Is(err, store.ErrUserNotFound) {
		httpmiddleware.Error(w, r, http.StatusUnauthorized, httpmiddleware.MsgNotAuthenticated)
		return nil, false
	}
	if err != nil {
		httpmiddleware.InternalError(w, r, err)
		return nil, false
	}
	return user, true
}
