package sessions

import "time"

// Session is one patient's pass through the diagnosis wizard. Each step
// stores its pipeline output as JSON; the report step closes the
// session.
type Session struct {
	ID         string         `json:"id"`
	ProfileID  string         `json:"profile_id"`
	Status     string         `json:"status"`
	Step       string         `json:"step"`
	BasicInfo  map[string]any `json:"basic_info,omitempty"`
	Inspection map[string]any `json:"inspection,omitempty"`
	Listening  map[string]any `json:"listening,omitempty"`
	Pulse      map[string]any `json:"pulse,omitempty"`
	Report     map[string]any `json:"report,omitempty"`
	ModelUsed  string         `json:"model_used"`
	Degraded   bool           `json:"degraded"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Wizard steps in order.
const (
	StepBasicInfo  = "basic_info"
	StepInquiry    = "inquiry"
	StepInspection = "inspection"
	StepListening  = "listening"
	StepPulse      = "pulse"
	StepReport     = "report"
)

// Session statuses.
const (
	StatusInProgress    = "in_progress"
	StatusCompleted     = "completed"
	StatusPendingReview = "pending_review"
)

// Profile is the subset of the profiles table the prompt context needs.
type Profile struct {
	ID       string  `json:"id"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role"`
	Sex      string  `json:"sex"`
	HeightCm float64 `json:"height_cm"`
	WeightKg float64 `json:"weight_kg"`
	Language string  `json:"language"`
}

// InquiryMessage is one stored turn of the intake chat.
type InquiryMessage struct {
	ID        int       `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
