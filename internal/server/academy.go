package server

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/certification"
	"github.com/filmforge/academy/internal/export"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
	"github.com/filmforge/academy/internal/profile"
)

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{
		Category:    q.Get("category"),
		Level:       q.Get("level"),
		RelatedTool: q.Get("tool"),
		Search:      q.Get("q"),
	}
	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, apperr.Validation("featured must be true or false"))
			return
		}
		f.FeaturedOnly = featured
	}

	courses, err := s.svc.Catalog.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := s.svc.Catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Enrollment.Enroll(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type progressRequest struct {
	ProgressPercentage *int `json:"progress_percentage" validate:"required,min=0,max=100"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if err := auth.Require(actor); err != nil {
		writeError(w, r, err)
		return
	}
	var req progressRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.svc.Enrollment.UpdateProgress(r.Context(), actor, r.PathValue("id"), *req.ProgressPercentage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Enrollment.Get(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleMyEnrollments(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Enrollment.ListForUser(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrollments": list})
}

type certificateView struct {
	certification.Certificate
	VerifyURL string `json:"verify_url"`
}

func (s *Server) certificateView(c certification.Certificate) certificateView {
	return certificateView{Certificate: c, VerifyURL: s.svc.Certificates.VerifyURL(c.CertificateNumber)}
}

func (s *Server) handleMyCertificates(w http.ResponseWriter, r *http.Request) {
	certs, err := s.svc.Certificates.ListForUser(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]certificateView, len(certs))
	for i, c := range certs {
		views[i] = s.certificateView(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"certificates": views})
}

func (s *Server) handleClaimCertificate(w http.ResponseWriter, r *http.Request) {
	cert, created, err := s.svc.Certificates.Claim(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, s.certificateView(cert))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Certificates.Verify(r.Context(), r.PathValue("number"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	if err := auth.Require(auth.FromContext(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := s.svc.Quizzes.GetQuiz(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type attemptRequest struct {
	Answers   map[string]string `json:"answers" validate:"required"`
	StartedAt time.Time         `json:"started_at"`
}

func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if err := auth.Require(actor); err != nil {
		writeError(w, r, err)
		return
	}
	var req attemptRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.svc.Quizzes.SubmitAttempt(r.Context(), actor, r.PathValue("id"), req.Answers, req.StartedAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Quizzes.ListAttempts(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": list})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	holder := actor.Name
	if holder == "" && !actor.Anonymous() {
		holder = profile.DisplayName(r.Context(), s.svc.Profiles, actor.UserID)
	}

	t, err := export.BuildTranscript(r.Context(), export.Sources{
		Courses:      s.svc.Catalog,
		Enrollments:  s.svc.Enrollment,
		Quizzes:      s.svc.Quizzes,
		Certificates: s.svc.Certificates,
	}, actor, holder, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.TranscriptXLSX(&buf, t); err != nil {
		writeError(w, r, err)
		return
	}
	writeXLSX(w, "transcript.xlsx", buf.Bytes())
}

func writeXLSX(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
