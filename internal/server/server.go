package server

import (
	"net/http"

	"filippo.io/csrf"
	"github.com/codinglab/eduhub/internal/auth"
	httpmiddleware "github.com/codinglab/eduhub/internal/http"
	"github.com/codinglab/eduhub/internal/logger"
	"github.com/codinglab/eduhub/internal/login"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/oidc"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/codinglab/eduhub/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const (
	msgInvalidToken     = "유효하지 않은 토큰입니다."
	msgMethodNotAllowed = "허용되지 않은 메서드입니다."
)

// Config holds the settings the HTTP surface needs.
type Config struct {
	BaseURL     string   // absolute URL prefix for pagination links
	CORSOrigins []string // browser origins allowed to call the API
	TrustProxy  bool     // read the client address from X-Forwarded-For
}

// Stores are the resource stores served by the API.
type Stores struct {
	Inquiries store.ResourceStore[*models.Inquiry]
	Lessons   store.ResourceStore[*models.LessonInquiry]
	Outreach  store.ResourceStore[*models.OutreachInquiry]
	Classes   store.ClassStore
}

// Server wraps the HTTP API.
type Server struct {
	cfg     Config
	stores  Stores
	authn   *auth.Authenticator
	limiter *httpmiddleware.RateLimiter
	metrics *telemetry.Metrics

	accounts  *login.Handler
	wellKnown *oidc.Handler
}

// NewServer creates a server over stores. limiter may be nil to disable
// throttling of submission endpoints.
func NewServer(cfg Config, stores Stores, authn *auth.Authenticator, limiter *httpmiddleware.RateLimiter) *Server {
	stores.Inquiries = store.Traced("inquiry", stores.Inquiries)
	stores.Lessons = store.Traced("lesson", stores.Lessons)
	stores.Outreach = store.Traced("outreach_inquiry", stores.Outreach)
	stores.Classes = store.TracedClasses(stores.Classes)

	return &Server{
		cfg:     cfg,
		stores:  stores,
		authn:   authn,
		limiter: limiter,
		metrics: telemetry.GetMetrics(),
	}
}

// WithAccounts mounts the account endpoints under /api/v1/auth/.
func (s *Server) WithAccounts(h *login.Handler) *Server {
	s.accounts = h
	return s
}

// WithWellKnown publishes the OIDC discovery and key documents.
func (s *Server) WithWellKnown(h *oidc.Handler) *Server {
	s.wellKnown = h
	return s
}

func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(next)
}

// Unauthorized answers requests whose bearer token could not be verified.
func Unauthorized(w http.ResponseWriter, r *http.Request, _ error) {
	httpmiddleware.Error(w, r, http.StatusUnauthorized, msgInvalidToken)
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(httpmiddleware.RequestID)
	r.Use(traceRequests)
	r.Use(httpmiddleware.ClientIPMiddleware(s.cfg.TrustProxy))
	r.Use(logger.Requests(log))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
	r.Use(s.withCORS)
	r.Use(s.crossOriginProtection(log))
	r.Use(s.authn.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpmiddleware.Error(w, r, http.StatusNotFound, httpmiddleware.MsgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpmiddleware.Error(w, r, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	// Health check endpoint for load balancer
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if s.wellKnown != nil {
		r.Get("/.well-known/openid-configuration", s.wellKnown.DiscoveryHandler())
		r.Get("/.well-known/jwks.json", s.wellKnown.JWKSHandler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/inquiries", newResources(s, inquiryKind(s.stores.Inquiries)).Routes)
		r.Route("/lessons", newResources(s, lessonKind(s.stores.Lessons)).Routes)
		r.Route("/outreach-inquiries", func(r chi.Router) {
			outreach := newResources(s, outreachKind(s.stores.Outreach))
			outreach.Routes(r)
			r.Patch("/{id:[0-9]+}/update_status/", updateStatus(outreach))
		})
		r.Route("/internal-classes", newClasses(s, s.stores.Classes).Routes)

		if s.accounts != nil {
			r.Route("/auth", func(r chi.Router) {
				s.accounts.Routes(r, s.limit)
			})
		}
	})

	return r
}

// withCORS lets the configured frontends call the API with bearer tokens.
func (s *Server) withCORS(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", httpmiddleware.RequestIDHeader},
		ExposedHeaders:   []string{httpmiddleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
	})
	return c.Handler(h)
}

// crossOriginProtection rejects state-changing browser requests from origins
// other than the CORS origins.
func (s *Server) crossOriginProtection(log zerolog.Logger) func(http.Handler) http.Handler {
	protection := csrf.New()
	for _, origin := range s.cfg.CORSOrigins {
		if origin == "*" {
			continue
		}
		if err := protection.AddTrustedOrigin(origin); err != nil {
			log.Warn().Err(err).Str("origin", origin).Msg("Ignoring invalid trusted origin")
		}
	}
	return protection.Handler
}
