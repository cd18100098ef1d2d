package server

import (
	"net/http"

	"github.com/filmforge/academy/internal/platform/auth"
)

func (s *Server) handleListDiscussions(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Forum.ListDiscussions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discussions": list})
}

type discussionRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=20000"`
}

func (s *Server) handleCreateDiscussion(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if err := auth.Require(actor); err != nil {
		writeError(w, r, err)
		return
	}
	var req discussionRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	d, err := s.svc.Forum.CreateDiscussion(r.Context(), actor, r.PathValue("id"), req.Title, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDiscussion(w http.ResponseWriter, r *http.Request) {
	thread, err := s.svc.Forum.GetDiscussion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

type replyRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

func (s *Server) handleCreateReply(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if err := auth.Require(actor); err != nil {
		writeError(w, r, err)
		return
	}
	var req replyRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reply, err := s.svc.Forum.CreateReply(r.Context(), actor, r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

func (s *Server) handleMarkSolution(w http.ResponseWriter, r *http.Request) {
	reply, err := s.svc.Forum.MarkAsSolution(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
