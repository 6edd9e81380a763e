package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	httputil "github.com/wolfeidau/traceledger/internal/http"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// HTTPRequests logs one line per request and attaches a request scoped
// logger to the context, retrievable with zerolog.Ctx.
type HTTPRequests struct {
	logger zerolog.Logger
}

func NewHTTPRequests(logger zerolog.Logger) *HTTPRequests {
	return &HTTPRequests{logger: logger}
}

func (h *HTTPRequests) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		ctx := h.logger.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", httputil.RequestIDFromContext(r.Context())).
			Str("addr", httputil.ClientIPFromContext(r.Context())).
			Logger().WithContext(r.Context())

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		var ev *zerolog.Event
		switch {
		case rec.status >= 500:
			ev = zerolog.Ctx(ctx).Error()
		case rec.status >= 400:
			ev = zerolog.Ctx(ctx).Warn()
		default:
			ev = zerolog.Ctx(ctx).Info()
		}

		ev.Int("status", rec.status).
			Int64("bytes", rec.bytes).
			Str("caller", rec.caller).
			Dur("duration", time.Since(started)).
			Msg("http request")
	})
}

// SetCaller records the authenticated caller on a response writer created
// by HTTPRequests so it appears in the request log line.
func SetCaller(w http.ResponseWriter, caller string) {
	for {
		switch rw := w.(type) {
		case *statusRecorder:
			rw.caller = caller
			return
		case interface{ Unwrap() http.ResponseWriter }:
			w = rw.Unwrap()
		default:
			return
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	caller      string
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

// Flush keeps server sent event streams working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
