package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"frisk/internal/platform/metrics"
	"frisk/pkg/requestcontext"
)

// Recorder writes audit entries. Audit persistence must never fail the
// primary operation: every write error is logged, counted, and swallowed.
// The one exception is in-transaction recording (check-in), where the caller
// passes a context carrying a transaction and Insert joins it; a failed
// insert there rolls back with everything else.
type Recorder struct {
	store  Store
	logger *slog.Logger
	m      *metrics.Metrics
}

func NewRecorder(store Store, logger *slog.Logger, m *metrics.Metrics) *Recorder {
	return &Recorder{store: store, logger: logger, m: m}
}

// Record persists one entry, taking the client IP and timestamp from the
// request context.
func (r *Recorder) Record(ctx context.Context, userID *uuid.UUID, action ActionType, details map[string]any) {
	e := Entry{
		UserID:     userID,
		ActionType: action,
		Details:    details,
		IPAddress:  requestcontext.ClientIP(ctx),
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := r.store.Insert(ctx, e); err != nil {
		r.m.AuditWriteFailures.Inc()
		r.logger.ErrorContext(ctx, "audit write failed",
			"action", action,
			"error", err,
		)
	}
}

// clientDetails parses the request's User-Agent into the browser and OS
// fields recorded alongside login activity.
func clientDetails(ctx context.Context) map[string]any {
	ua := useragent.New(requestcontext.UserAgent(ctx))
	browser, version := ua.Browser()
	return map[string]any{
		"browser": browser,
		"version": version,
		"os":      ua.OS(),
		"mobile":  ua.Mobile(),
	}
}

// LoginSuccess records a successful login with client details.
func (r *Recorder) LoginSuccess(ctx context.Context, userID uuid.UUID, email string) {
	details := clientDetails(ctx)
	details["email"] = email
	details["success"] = true
	r.Record(ctx, &userID, ActionLogin, details)
}

// LoginFailure records a failed login attempt. userID is nil when the email
// did not resolve to a user.
func (r *Recorder) LoginFailure(ctx context.Context, userID *uuid.UUID, email, reason string) {
	details := clientDetails(ctx)
	details["email"] = email
	details["success"] = false
	details["reason"] = reason
	r.Record(ctx, userID, ActionLogin, details)
}

// Logout records a session termination.
func (r *Recorder) Logout(ctx context.Context, userID uuid.UUID) {
	r.Record(ctx, &userID, ActionLogout, nil)
}

// Upload records a file upload against an entity.
func (r *Recorder) Upload(ctx context.Context, userID uuid.UUID, entity string, entityID uuid.UUID, fileName string) {
	r.Record(ctx, &userID, ActionUpload, map[string]any{
		"entity":    entity,
		"entity_id": entityID.String(),
		"file_name": fileName,
	})
}

// Download records a file or report download.
func (r *Recorder) Download(ctx context.Context, userID uuid.UUID, entity string, detail string) {
	r.Record(ctx, &userID, ActionDownload, map[string]any{
		"entity": entity,
		"detail": detail,
	})
}

// Update records a mutation of an entity.
func (r *Recorder) Update(ctx context.Context, userID uuid.UUID, entity string, entityID uuid.UUID, changes map[string]any) {
	details := map[string]any{
		"entity":    entity,
		"entity_id": entityID.String(),
	}
	if len(changes) > 0 {
		details["changes"] = changes
	}
	r.Record(ctx, &userID, ActionUpdate, details)
}

// Delete records a removal of an entity.
func (r *Recorder) Delete(ctx context.Context, userID uuid.UUID, entity string, entityID uuid.UUID) {
	r.Record(ctx, &userID, ActionDelete, map[string]any{
		"entity":    entity,
		"entity_id": entityID.String(),
	})
}
