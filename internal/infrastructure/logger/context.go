package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	requestIDKey  contextKey = "request_id"
	sessionIDKey  contextKey = "session_id"
	borrowerIDKey contextKey = "borrower_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id for log correlation
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithSession stores the cart session and its borrower for log correlation
func WithSession(ctx context.Context, sessionID, borrowerID string) context.Context {
	if sessionID != "" {
		ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	}
	if borrowerID != "" {
		ctx = context.WithValue(ctx, borrowerIDKey, borrowerID)
	}
	return ctx
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// GetSessionID retrieves the cart session ID from context
func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// GetBorrowerID retrieves the borrower ID from context
func GetBorrowerID(ctx context.Context) string {
	v, _ := ctx.Value(borrowerIDKey).(string)
	return v
}

// L returns the context logger enriched with request_id, session_id and
// borrower_id when present.
//
//	logger.L(ctx).Info("tag added", zap.String("rfid_tag", tag))
func L(ctx context.Context) *zap.Logger {
	return Enrich(ctx, FromContext(ctx))
}

// Enrich adds the correlation fields found in ctx to base
func Enrich(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := make([]zap.Field, 0, 3)
	if v := GetRequestID(ctx); v != "" {
		fields = append(fields, zap.String("request_id", v))
	}
	if v := GetSessionID(ctx); v != "" {
		fields = append(fields, zap.String("session_id", v))
	}
	if v := GetBorrowerID(ctx); v != "" {
		fields = append(fields, zap.String("borrower_id", v))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
