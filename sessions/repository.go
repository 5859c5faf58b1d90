package sessions

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create opens a new diagnosis session for a profile.
func (r *Repository) Create(ctx context.Context, profileID string, basicInfo map[string]any) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Status:    StatusInProgress,
		Step:      StepBasicInfo,
		BasicInfo: basicInfo,
	}
	info, err := json.Marshal(basicInfo)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO diagnosis_sessions (id, profile_id, status, step, basic_info)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.ProfileID, s.Status, s.Step, info)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a session by id, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, profile_id, status, step, basic_info, inspection, listening, pulse, report,
		        model_used, degraded, created_at, updated_at
		 FROM diagnosis_sessions WHERE id = $1`, id)

	var s Session
	var basicInfo, inspection, listening, pulse, report []byte
	err := row.Scan(&s.ID, &s.ProfileID, &s.Status, &s.Step,
		&basicInfo, &inspection, &listening, &pulse, &report,
		&s.ModelUsed, &s.Degraded, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	unmarshalInto(basicInfo, &s.BasicInfo)
	unmarshalInto(inspection, &s.Inspection)
	unmarshalInto(listening, &s.Listening)
	unmarshalInto(pulse, &s.Pulse)
	unmarshalInto(report, &s.Report)
	return &s, nil
}

// SaveStep persists one wizard step's payload and advances the step
// marker. A degraded payload flips the session to pending_review so a
// doctor picks it up.
func (r *Repository) SaveStep(ctx context.Context, id, step string, payload map[string]any, modelUsed string, degraded bool) error {
	column, ok := stepColumns[step]
	if !ok {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	status := StatusInProgress
	if degraded {
		status = StatusPendingReview
	}
	if step == StepReport && !degraded {
		status = StatusCompleted
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE diagnosis_sessions
		 SET `+column+` = $1, step = $2, status = $3, model_used = $4, degraded = $5, updated_at = NOW()
		 WHERE id = $6`,
		body, step, status, modelUsed, degraded, id)
	return err
}

var stepColumns = map[string]string{
	StepBasicInfo:  "basic_info",
	StepInspection: "inspection",
	StepListening:  "listening",
	StepPulse:      "pulse",
	StepReport:     "report",
}

// AppendInquiry stores one chat turn under the session.
func (r *Repository) AppendInquiry(ctx context.Context, sessionID, role, content string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO inquiries (session_id, role, content) VALUES ($1, $2, $3)`,
		sessionID, role, content)
	return err
}

// InquiryHistory returns the stored chat turns in order.
func (r *Repository) InquiryHistory(ctx context.Context, sessionID string) ([]InquiryMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM inquiries WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := []InquiryMessage{}
	for rows.Next() {
		var m InquiryMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetProfile returns a profile by id, or nil when it does not exist.
func (r *Repository) GetProfile(ctx context.Context, id string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, role, sex, height_cm, weight_kg, language
		 FROM profiles WHERE id = $1`, id)
	var p Profile
	err := row.Scan(&p.ID, &p.FullName, &p.Role, &p.Sex, &p.HeightCm, &p.WeightKg, &p.Language)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func unmarshalInto(raw []byte, dst *map[string]any) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}
