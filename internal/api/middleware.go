package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Idempotency headers.
const (
	IdempotencyHeader      = "Idempotency-Key"
	IdempotentReplayHeader = "Idempotent-Replay"
	maxIdempotencyKeyLen   = 128
)

// cachedResponse is a replayable response for one Idempotency-Key.
type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// RequestLoggingMiddleware logs request start and completion.
func (s *Server) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		s.logger.Debug("request_start",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent())

		next.ServeHTTP(ww, r)

		s.logger.Info("request_completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", requestID,
			"bytes_written", ww.BytesWritten())
	})
}

// IdempotencyMiddleware replays the stored response when a request repeats
// an Idempotency-Key. Server errors are not stored, so a retry runs again.
// A second request arriving while the first is still running gets 409.
func (s *Server) IdempotencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			s.errorHandler.HandleError(w, r, NewError(ErrTypeValidation, "Idempotency-Key is too long").
				WithRequestID(middleware.GetReqID(r.Context())).
				Build())
			return
		}

		cacheKey := r.Method + " " + r.URL.Path + " " + key
		if cached, ok := s.idempotency.Get(cacheKey); ok {
			s.replay(w, cached)
			return
		}
		if _, busy := s.inflight.LoadOrStore(cacheKey, struct{}{}); busy {
			s.errorHandler.HandleError(w, r, NewError(ErrTypeRoundInProgress, "A request with this Idempotency-Key is still running.").
				WithRequestID(middleware.GetReqID(r.Context())).
				Build())
			return
		}
		defer s.inflight.Delete(cacheKey)

		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status < http.StatusInternalServerError {
			s.idempotency.Add(cacheKey, cachedResponse{
				status:      rec.status,
				contentType: rec.Header().Get("Content-Type"),
				body:        rec.body.Bytes(),
			})
		}
	})
}

func (s *Server) replay(w http.ResponseWriter, c cachedResponse) {
	if c.contentType != "" {
		w.Header().Set("Content-Type", c.contentType)
	}
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(c.status)
	_, _ = w.Write(c.body)
}

// recordingWriter tees the response body so it can be replayed.
type recordingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}
