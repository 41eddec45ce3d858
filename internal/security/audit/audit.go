package audit

import (
	"context"
	"log/slog"
	"time"
)

type requestIDKey struct{}

// WithRequestID stores the request id so audit records can be correlated
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, or ""
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Record is one entry of the audit trail
type Record struct {
	TenantID   string
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Status     string
	Details    string
}

type Logger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit")), now: time.Now}
}

func (al *Logger) Log(ctx context.Context, rec Record) {
	al.logger.Info("audit",
		slog.String("action", rec.Action),
		slog.String("resource", rec.Resource),
		slog.String("resource_id", rec.ResourceID),
		slog.String("tenant_id", rec.TenantID),
		slog.String("user_id", rec.UserID),
		slog.String("status", rec.Status),
		slog.String("details", rec.Details),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", al.now()),
	)
}

// LogWrite records a mutating request and its outcome
func (al *Logger) LogWrite(ctx context.Context, tenantID, userID, action, resource, resourceID, status string) {
	al.Log(ctx, Record{
		TenantID:   tenantID,
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Status:     status,
	})
}

// LogDenied records a request refused by the authorization policy
func (al *Logger) LogDenied(ctx context.Context, tenantID, userID, resource, reason string) {
	al.Log(ctx, Record{
		TenantID: tenantID,
		UserID:   userID,
		Action:   "access_denied",
		Resource: resource,
		Status:   "denied",
		Details:  reason,
	})
}

// LogAuth records a registration or login attempt. The username is kept
// so repeated failures against one account stand out.
func (al *Logger) LogAuth(ctx context.Context, kind, username, userID, status string) {
	al.Log(ctx, Record{
		UserID:   userID,
		Action:   kind,
		Resource: "session",
		Status:   status,
		Details:  username,
	})
}
