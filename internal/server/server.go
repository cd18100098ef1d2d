// Package server exposes the academy and studio over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/certification"
	"github.com/filmforge/academy/internal/enrollment"
	"github.com/filmforge/academy/internal/forum"
	"github.com/filmforge/academy/internal/platform/auth"
	"github.com/filmforge/academy/internal/profile"
	"github.com/filmforge/academy/internal/quiz"
	"github.com/filmforge/academy/internal/studio"
)

// Services are the domain services the API dispatches to.
type Services struct {
	Catalog      *catalog.Service
	Enrollment   *enrollment.Service
	Quizzes      *quiz.Service
	Certificates *certification.Service
	Forum        *forum.Service
	Studio       *studio.Service
	Profiles     profile.Directory
}

// Check reports whether a dependency is ready to serve traffic.
type Check func(ctx context.Context) error

// Server routes HTTP requests to the services.
type Server struct {
	svc      Services
	verifier *auth.Verifier
	validate *validator.Validate
	checks   map[string]Check
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithReadinessCheck adds a dependency probed by /readyz.
func WithReadinessCheck(name string, c Check) Option {
	return func(s *Server) { s.checks[name] = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server.
func New(svc Services, verifier *auth.Verifier, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		verifier: verifier,
		validate: newValidator(),
		checks:   make(map[string]Check),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the root handler with logging and authentication applied.
func (s *Server) Handler() http.Handler {
	return requestLog(s.authenticate(s.routes()))
}

// publicRoutes serve anonymous callers. A bad token on these is ignored
// rather than rejected.
var publicRoutes = map[string]bool{
	"GET /healthz":                      true,
	"GET /readyz":                       true,
	"GET /api/courses":                  true,
	"GET /api/courses/{id}":             true,
	"GET /verify-certificate/{number}":  true,
	"GET /api/courses/{id}/discussions": true,
	"GET /api/discussions/{id}":         true,
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/courses", s.handleListCourses)
	mux.HandleFunc("GET /api/courses/{id}", s.handleGetCourse)
	mux.HandleFunc("POST /api/courses/{id}/enroll", s.handleEnroll)
	mux.HandleFunc("PUT /api/courses/{id}/progress", s.handleUpdateProgress)
	mux.HandleFunc("GET /api/courses/{id}/progress", s.handleGetProgress)
	mux.HandleFunc("POST /api/courses/{id}/certificate", s.handleClaimCertificate)
	mux.HandleFunc("GET /api/me/enrollments", s.handleMyEnrollments)
	mux.HandleFunc("GET /api/me/certificates", s.handleMyCertificates)
	mux.HandleFunc("GET /api/me/transcript.xlsx", s.handleTranscript)
	mux.HandleFunc("GET /api/quizzes/{id}", s.handleGetQuiz)
	mux.HandleFunc("POST /api/quizzes/{id}/attempts", s.handleSubmitAttempt)
	mux.HandleFunc("GET /api/quizzes/{id}/attempts", s.handleListAttempts)
	mux.HandleFunc("GET /verify-certificate/{number}", s.handleVerify)

	mux.HandleFunc("GET /api/courses/{id}/discussions", s.handleListDiscussions)
	mux.HandleFunc("POST /api/courses/{id}/discussions", s.handleCreateDiscussion)
	mux.HandleFunc("GET /api/discussions/{id}", s.handleGetDiscussion)
	mux.HandleFunc("POST /api/discussions/{id}/replies", s.handleCreateReply)
	mux.HandleFunc("POST /api/replies/{id}/solution", s.handleMarkSolution)

	mux.HandleFunc("POST /api/studio/script-analysis", s.handleScriptAnalysis)
	mux.HandleFunc("POST /api/studio/call-sheet", s.handleCallSheet)
	mux.HandleFunc("POST /api/studio/call-sheet.xlsx", s.handleCallSheetXLSX)
	mux.HandleFunc("POST /api/studio/frames", s.handleFrame)
	mux.HandleFunc("GET /api/studio/assist/ws", s.handleAssistWS)

	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
