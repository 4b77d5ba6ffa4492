package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/roach88/sieve/internal/auth"
	"github.com/roach88/sieve/internal/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestID reuses the caller's X-Request-Id or assigns a UUID.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
		})
	}
}

// Recovery turns a handler panic into a 500.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					log.WithContext(r.Context()).Error().
						Str("error", fmt.Sprint(rvr)).
						Str("stack", string(debug.Stack())).
						Str("path", r.URL.Path).
						Str("method", r.Method).
						Msg("panic recovered")
					w.Header().Set("Content-Type", ContentTypeJSON)
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"message":"Server Error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLogger logs one line per request, at warn for 4xx and error for 5xx.
func AccessLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			reqLogger := log.WithContext(r.Context()).With().Str("component", "http").Logger()
			event := reqLogger.Info()
			if sw.status >= http.StatusInternalServerError {
				event = reqLogger.Error()
			} else if sw.status >= http.StatusBadRequest {
				event = reqLogger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", sw.status).
				Uint64("bytes", sw.bytes).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Send()
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       uint64
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += uint64(n)
	return n, err
}

// Authenticate binds the bearer token's principal to the request context.
// Requests without a token proceed as guests; an unknown token is a 401.
func Authenticate(tokens auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeError(w, r, auth.ErrAuthenticationRequired)
				return
			}
			user, ok := tokens.Authenticate(strings.TrimSpace(token))
			if !ok {
				writeError(w, r, auth.ErrAuthenticationRequired)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

// Decompress decodes gzip and zstd request bodies. Both the wire body and
// the decoded body are capped at maxBytes.
func Decompress(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			body := http.MaxBytesReader(w, r.Body, maxBytes)

			var decoded io.ReadCloser
			switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
			case "", "identity":
				r.Body = body
				next.ServeHTTP(w, r)
				return
			case "gzip":
				gz, err := gzip.NewReader(body)
				if err != nil {
					writeError(w, r, badRequest("invalid gzip body: %v", err))
					return
				}
				decoded = gz
			case "zstd":
				zr, err := zstd.NewReader(body)
				if err != nil {
					writeError(w, r, badRequest("invalid zstd body: %v", err))
					return
				}
				decoded = zr.IOReadCloser()
			default:
				writeError(w, r, &requestError{status: http.StatusUnsupportedMediaType, message: fmt.Sprintf("Unsupported content encoding %q.", enc)})
				return
			}
			defer decoded.Close()

			r.Body = http.MaxBytesReader(w, decoded, maxBytes)
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
			next.ServeHTTP(w, r)
		})
	}
}
