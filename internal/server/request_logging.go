package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"zcas/internal/api"
)

// transferRecorder captures what a handler sent so the access log can
// name the blob and codec involved.
type transferRecorder struct {
	http.ResponseWriter
	status int
	sent   int64
}

func (t *transferRecorder) WriteHeader(status int) {
	if t.status == 0 {
		t.status = status
	}
	t.ResponseWriter.WriteHeader(status)
}

func (t *transferRecorder) Write(p []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}
	n, err := t.ResponseWriter.Write(p)
	t.sent += int64(n)
	return n, err
}

func (t *transferRecorder) Flush() {
	if flusher, ok := t.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// countingBody tallies request bytes read by the handler; uploads are
// streamed without a Content-Length.
type countingBody struct {
	io.ReadCloser
	read int64
}

func (c *countingBody) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.read += int64(n)
	return n, err
}

func (t *transferRecorder) code() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}

// withRequestLogging logs one line per request. Successful blob
// transfers are logged at info with their hash and codec; everything
// else below 500 at debug.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &transferRecorder{ResponseWriter: w}
		body := &countingBody{ReadCloser: r.Body}
		r.Body = body
		next.ServeHTTP(rec, r)

		status := rec.code()
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes_out", rec.sent,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if body.read > 0 {
			fields = append(fields, "bytes_in", body.read)
		}
		if r.Pattern != "" {
			fields = append(fields, "route", r.Pattern)
		}
		hash := rec.Header().Get(api.HeaderContentHash)
		if hash != "" {
			fields = append(fields, "hash", hash, "codec", rec.Header().Get(api.HeaderCodec))
		}

		switch {
		case status >= 500:
			s.log().Error("request complete", fields...)
		case hash != "" && status < 300 && strings.HasPrefix(r.URL.Path, "/v1/blobs"):
			s.log().Info("blob transfer", fields...)
		default:
			s.log().Debug("request complete", fields...)
		}
	})
}
