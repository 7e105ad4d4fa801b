// Package logging holds the process-wide zap logger and the request
// logging used by the relay.
package logging

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// requestScope is what Middleware attaches to a request context.
type requestScope struct {
	id     string
	logger *zap.Logger
}

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // console or json
	OutputPath string // stdout, stderr or a file path; stderr when empty
}

// Init builds the global logger. An unknown level falls back to info.
func Init(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = level != zapcore.DebugLevel
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}

	logger, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	global.Store(logger)
	return nil
}

// UseLogger replaces the global logger.
func UseLogger(l *zap.Logger) {
	global.Store(l)
}

// Sync flushes buffered entries.
func Sync() error {
	return global.Load().Sync()
}

// Named returns a component logger. Call it after Init.
func Named(component string) *zap.Logger {
	return global.Load().WithOptions(zap.AddCallerSkip(-1)).Named(component)
}

func Debug(msg string, fields ...zap.Field) { global.Load().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { global.Load().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { global.Load().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { global.Load().Error(msg, fields...) }

// FromContext returns the request logger set by Middleware, or the global
// logger outside a request.
func FromContext(ctx context.Context) *zap.Logger {
	if scope, ok := ctx.Value(ctxKey{}).(requestScope); ok {
		return scope.logger
	}
	return global.Load().WithOptions(zap.AddCallerSkip(-1))
}

// RequestID returns the id Middleware assigned to the request, if any.
func RequestID(ctx context.Context) string {
	if scope, ok := ctx.Value(ctxKey{}).(requestScope); ok {
		return scope.id
	}
	return ""
}

var requestSeq atomic.Uint64

func newRequestID() string {
	return strconv.FormatInt(time.Now().Unix(), 36) + "-" + strconv.FormatUint(requestSeq.Add(1), 36)
}

// statusWriter records the status and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.size += int64(n)
	return n, err
}

// Flush keeps event streams working behind the middleware.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// Middleware tags each request with an id (X-Request-ID, generated when
// absent), exposes a request logger through FromContext and logs the
// outcome. Server errors log at warn level.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)

		logger := global.Load().WithOptions(zap.AddCallerSkip(-1)).With(zap.String("request_id", id))
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, requestScope{id: id, logger: logger}))

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		level := zapcore.InfoLevel
		if sw.status >= http.StatusInternalServerError {
			level = zapcore.WarnLevel
		}
		logger.Log(level, "request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Int64("size", sw.size),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
