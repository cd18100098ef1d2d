package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/filmforge/academy/internal/ai"
	"github.com/filmforge/academy/internal/export"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
	"github.com/filmforge/academy/internal/studio"
)

type textRequest struct {
	Text string `json:"text" validate:"required"`
}

type frameRequest struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
	Style  string `json:"style" validate:"max=32"`
}

func (s *Server) handleScriptAnalysis(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decodeAuthed(w, r, &req) {
		return
	}
	out, err := s.svc.Studio.AnalyzeScript(r.Context(), auth.FromContext(r.Context()), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCallSheet(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decodeAuthed(w, r, &req) {
		return
	}
	out, err := s.svc.Studio.ParseCallSheet(r.Context(), auth.FromContext(r.Context()), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCallSheetXLSX renders a call sheet the client already holds, so
// exporting does not spend another completion.
func (s *Server) handleCallSheetXLSX(w http.ResponseWriter, r *http.Request) {
	var cs studio.CallSheet
	if !s.decodeAuthed(w, r, &cs) {
		return
	}
	var buf bytes.Buffer
	if err := export.CallSheetXLSX(&buf, cs); err != nil {
		writeError(w, r, err)
		return
	}
	writeXLSX(w, "call-sheet.xlsx", buf.Bytes())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if !s.decodeAuthed(w, r, &req) {
		return
	}
	frame, err := s.svc.Studio.GenerateFrame(r.Context(), auth.FromContext(r.Context()), req.Prompt, req.Style)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// decodeAuthed requires an actor, then decodes the body. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decodeAuthed(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := auth.Require(auth.FromContext(r.Context())); err != nil {
		writeError(w, r, err)
		return false
	}
	if err := s.decode(w, r, v); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

// assistRequest is one client turn on the assistant socket.
type assistRequest struct {
	Messages []ai.Message `json:"messages" validate:"required,min=1,max=40"`
}

// assistFrame is one server message on the assistant socket.
type assistFrame struct {
	Type         string       `json:"type"`
	Content      string       `json:"content,omitempty"`
	InputTokens  int          `json:"input_tokens,omitempty"`
	OutputTokens int          `json:"output_tokens,omitempty"`
	Error        *errorDetail `json:"error,omitempty"`
}

const assistIdleTimeout = 10 * time.Minute

// handleAssistWS streams assistant replies over a WebSocket. Each client
// message carries the conversation so far; the server answers with chunk
// frames followed by a done or error frame.
func (s *Server) handleAssistWS(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if err := auth.Require(actor); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		readCtx, cancel := context.WithTimeout(ctx, assistIdleTimeout)
		var req assistRequest
		err := wsjson.Read(readCtx, conn, &req)
		cancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				slog.Debug("assistant socket closed", "user_id", actor.UserID, "error", err)
			}
			return
		}

		if err := s.validate.Struct(req); err != nil {
			if !s.sendError(ctx, conn, validationError(err)) {
				return
			}
			continue
		}
		if !s.streamAssist(ctx, conn, actor, req.Messages) {
			return
		}
	}
}

// streamAssist relays one reply. It returns false when the socket is gone.
func (s *Server) streamAssist(ctx context.Context, conn *websocket.Conn, actor auth.Actor, messages []ai.Message) bool {
	chunks, err := s.svc.Studio.Assist(ctx, actor, messages)
	if err != nil {
		return s.sendError(ctx, conn, err)
	}
	for c := range chunks {
		var frame assistFrame
		switch {
		case c.Error != nil:
			return s.sendError(ctx, conn, c.Error)
		case c.Done:
			frame = assistFrame{Type: "done", InputTokens: c.InputTokens, OutputTokens: c.OutputTokens}
		default:
			frame = assistFrame{Type: "chunk", Content: c.Content}
		}
		if err := wsjson.Write(ctx, conn, frame); err != nil {
			return false
		}
	}
	return true
}

func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, err error) bool {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindUpstream {
		slog.Error("assistant request failed", "kind", kind.String(), "error", err)
	}
	frame := assistFrame{Type: "error", Error: &errorDetail{Kind: kind.String(), Message: apperr.Message(err)}}
	return wsjson.Write(ctx, conn, frame) == nil
}
