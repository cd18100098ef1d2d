package server

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
)

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets the WebSocket handler take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// authenticate attaches the Bearer token's actor to the request context.
// Requests without a token continue anonymously. A bad token is rejected,
// except on public routes where it is ignored.
// Browsers cannot set headers on WebSocket upgrades, so those may pass the
// token as the access_token query parameter.
func (s *Server) authenticate(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" && isWebSocketUpgrade(r) {
			if tok := r.URL.Query().Get("access_token"); tok != "" {
				header = "Bearer " + tok
			}
		}
		if header == "" {
			mux.ServeHTTP(w, r)
			return
		}

		actor, err := s.verifier.ParseBearer(header)
		if err != nil {
			if _, pattern := mux.Handler(r); publicRoutes[pattern] {
				mux.ServeHTTP(w, r)
				return
			}
			writeError(w, r, apperr.Wrap(apperr.KindUnauthenticated, "invalid or expired token", err))
			return
		}
		mux.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	})
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
