package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"quotecards/internal/metrics"
	"quotecards/internal/ratelimit"
	"quotecards/internal/util"
	"quotecards/pkg/domain"
	"quotecards/pkg/storage"
	"quotecards/services/channels/internal/app"
)

const (
	maxJSONBytes   = 1 << 20
	maxUploadBytes = 32 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// GenerationLimiter caps cold starts, flips and twists per user. Nil disables the limit.
	GenerationLimiter  *ratelimit.FixedWindowLimiter
	CORSAllowedOrigins []string
	TrustedProxies     *util.TrustedProxies
	Metrics            *metrics.Metrics
}

// Server exposes the channels HTTP API.
type Server struct {
	app      *app.App
	mux      *http.ServeMux
	limiter  *ratelimit.FixedWindowLimiter
	origins  []string
	trusted  *util.TrustedProxies
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:     cfg.App,
		mux:     http.NewServeMux(),
		limiter: cfg.GenerationLimiter,
		origins: cfg.CORSAllowedOrigins,
		trusted: cfg.TrustedProxies,
		metrics: cfg.Metrics,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog(s.trusted,
			util.WithSecurityHeaders(
				util.WithCORS(s.origins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))

	// channels, cards and chat
	s.mux.HandleFunc("/api/channels", s.handleChannels)
	s.mux.HandleFunc("/api/channels/", s.handleChannelTree)

	// serendipity
	s.mux.HandleFunc("/api/personas", s.handlePersonas)
	s.mux.Handle("/api/serendipity/items", s.authenticated(s.handleSerendipityItems))
	s.mux.Handle("/api/serendipity/items/", s.authenticated(s.handleSerendipityItems))
	s.mux.Handle("/api/serendipity/recommendations", s.authenticated(s.handleRecommendations))
	s.mux.Handle("/api/serendipity/recommendations/", s.authenticated(s.handleRecommendations))

	s.mux.Handle("/api/jobs/", s.authenticated(s.handleJob))
	s.mux.HandleFunc(storage.MediaPathPrefix, s.handleMedia)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"generator": s.app.GeneratorMode(),
		"queue":     s.app.QueueEnabled(),
	})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	user, err := s.app.UserFromToken(r.Context(), token)
	if err != nil {
		return domain.User{}, false
	}
	return user, true
}

// viewerID returns the caller's user id, or "" for anonymous callers.
func (s *Server) viewerID(r *http.Request) string {
	if _, ok := bearerToken(r); !ok {
		return ""
	}
	user, ok := s.authorize(r)
	if !ok {
		return ""
	}
	return user.ID
}

// allowGeneration applies the per-user generation limit.
func (s *Server) allowGeneration(w http.ResponseWriter, r *http.Request, user domain.User) bool {
	if s.limiter == nil {
		return true
	}
	decision := s.limiter.Allow(r.Context(), "generate:"+user.ID)
	if decision.Allowed {
		return true
	}
	if s.metrics != nil {
		s.metrics.RateLimited.Inc()
	}
	retry := int(decision.RetryAfter.Seconds())
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many generation requests, try again later")
	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.origins) == 0 {
		return true
	}
	for _, allowed := range s.origins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// bearerToken reads the Authorization header. Websocket handshakes cannot set headers from a
// browser, so they may pass the token as ?token= instead.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		return token, token != ""
	}
	if websocket.IsWebSocketUpgrade(r) {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		return token, token != ""
	}
	return "", false
}

func decodeJSON(r *http.Request, limit int64, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, limit)).Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, RequestID: util.RequestIDFromRequest(r)})
}

// splitPath returns the non-empty segments of path after prefix.
func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
