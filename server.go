package otherus

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the auth core over HTTP. All request bodies and error
// responses are JSON; the only non-JSON response is the OAuth callback
// redirect.
type Server struct {
	Auth *Auth

	// ClientCallbackURL is where the user agent is redirected after a
	// successful OAuth callback, carrying the issued token as a query
	// parameter. The receiver on the other end is the client's own
	// little HTTP endpoint; all we know about it is that it exists.
	ClientCallbackURL string

	router *mux.Router
}

// NewServer builds the HTTP layer on top of an Auth.
func NewServer(auth *Auth, clientCallbackURL string) *Server {
	s := &Server{
		Auth:              auth,
		ClientCallbackURL: clientCallbackURL,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := mux.NewRouter()
	protect := s.Auth.EnsureUser(func(w http.ResponseWriter, _ *http.Request, err error) {
		s.writeError(w, err)
	})

	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/token", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/{provider}/login", s.handleOAuthLogin).Methods(http.MethodGet)
	r.HandleFunc("/auth/{provider}/callback", s.handleOAuthCallback).Methods(http.MethodGet)

	// The search route has to beat /users/{id} to registration; gorilla
	// matches in order.
	r.Handle("/users/search/query", protect(http.HandlerFunc(s.handleSearch))).Methods(http.MethodGet)
	r.Handle("/users/me", protect(http.HandlerFunc(s.handleGetMe))).Methods(http.MethodGet)
	r.Handle("/users/me", protect(http.HandlerFunc(s.handleUpdateMe))).Methods(http.MethodPut)
	r.Handle("/users/me", protect(http.HandlerFunc(s.handleDeleteMe))).Methods(http.MethodDelete)
	r.Handle("/users/{id}", protect(http.HandlerFunc(s.handleGetUser))).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router = r
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return loggingMiddleware(corsMiddleware(MetricsMiddleware(s.router)))
}

// loggingMiddleware logs every request with its outcome and latency.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware lets the desktop client talk to us from its own origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
