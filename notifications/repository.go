package notifications

import (
	"context"
	"database/sql"
	"time"
)

// Notification kinds.
const (
	KindPendingReview = "pending_review"
	KindReportReady   = "report_ready"
)

// Repository writes rows into scheduled_notifications. A separate
// delivery job drains the table; this service only enqueues.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SchedulePendingReview enqueues a doctor-review notification for a
// session that was served a degraded fallback payload. Best effort:
// callers do not fail the request when the insert fails.
func (r *Repository) SchedulePendingReview(ctx context.Context, sessionID, endpoint string) error {
	if r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_notifications (session_id, kind, message, scheduled_for)
		 VALUES ($1, $2, $3, $4)`,
		sessionID, KindPendingReview,
		"AI analysis unavailable for step "+endpoint+"; manual review required.",
		time.Now().Add(15*time.Minute))
	return err
}

// ScheduleReportReady enqueues the patient-facing notice that the
// diagnostic report is available.
func (r *Repository) ScheduleReportReady(ctx context.Context, sessionID string) error {
	if r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_notifications (session_id, kind, message, scheduled_for)
		 VALUES ($1, $2, $3, NOW())`,
		sessionID, KindReportReady, "您的中医诊断报告已生成，请查看。")
	return err
}
