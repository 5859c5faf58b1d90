package inquiry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tcm-backend/config"
	"tcm-backend/notifications"
	"tcm-backend/openai"
	"tcm-backend/pipeline"
	"tcm-backend/prompts"
	"tcm-backend/sessions"
	"tcm-backend/sse"
)

// Runner is the pipeline surface this handler needs; implemented by
// pipeline.Pipeline and mocked in tests.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
	RunStream(ctx context.Context, req pipeline.Request) (<-chan string, string, error)
}

const fallbackReply = "问诊服务暂时不可用，您的信息已记录，医师稍后会人工跟进。"

type Handler struct {
	ai       Runner
	selector *pipeline.Selector
	prompts  *prompts.Repository
	store    *sessions.Repository          // optional; nil skips persistence
	notify   *notifications.Repository     // optional
	timeout  time.Duration
}

func NewHandler(ai Runner, sel *pipeline.Selector, pr *prompts.Repository, store *sessions.Repository, notify *notifications.Repository, cfg config.AIConfig) *Handler {
	timeout := cfg.ChatTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Handler{ai: ai, selector: sel, prompts: pr, store: store, notify: notify, timeout: timeout}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/inquiry/start", h.Start)
	r.POST("/inquiry/message", h.Message)
}

type startReq struct {
	ProfileID string         `json:"profile_id"`
	BasicInfo map[string]any `json:"basic_info"`
}

// Start opens a diagnosis session and returns the derived basic-info
// metrics so the wizard can show them on the first screen.
func (h *Handler) Start(c *gin.Context) {
	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	sessionID := uuid.NewString()
	if h.store != nil && req.ProfileID != "" {
		if s, err := h.store.Create(c.Request.Context(), req.ProfileID, req.BasicInfo); err == nil {
			sessionID = s.ID
		}
	}

	resp := gin.H{"session_id": sessionID}
	if m := basicMetrics(req.BasicInfo); len(m) > 0 {
		resp["metrics"] = m
	}
	c.JSON(http.StatusOK, resp)
}

type messageReq struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Language  string `json:"language"`
	Level     string `json:"level"` // doctor account level, optional
}

// Message continues the intake chat. The reply streams as SSE; fallback
// across candidate models only happens before the first byte. On
// exhaustion the client still gets a well-formed stream carrying the
// fallback text.
func (h *Handler) Message(c *gin.Context) {
	var req messageReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	contextFields := map[string]string{}
	role := "patient_intake"
	if req.Level != "" {
		role = "doctor_chat"
		contextFields["level"] = req.Level
	}
	if h.store != nil && req.SessionID != "" {
		if s, _ := h.store.Get(ctx, req.SessionID); s != nil {
			if p, _ := h.store.GetProfile(ctx, s.ProfileID); p != nil {
				contextFields["name"] = p.FullName
				contextFields["sex"] = p.Sex
				if req.Language == "" {
					req.Language = p.Language
				}
			}
		}
	}

	system := prompts.Assemble(h.prompts.TemplateFor(ctx, role), contextFields, req.Language)
	msgs := h.history(ctx, req.SessionID)
	msgs = append(msgs, openai.Message{Role: "user", Content: req.Message})

	tier := h.selector.TierForLevel(req.Level)
	preq := pipeline.Request{
		Endpoint:     "inquiry",
		SystemPrompt: system,
		Messages:     msgs,
		Candidates:   h.selector.Candidates(tier),
		FallbackText: fallbackReply,
	}

	if h.store != nil && req.SessionID != "" {
		_ = h.store.AppendInquiry(ctx, req.SessionID, "user", req.Message)
	}

	stream, model, err := h.ai.RunStream(ctx, preq)
	if err != nil {
		// Exhausted before the first byte: degrade, never error out.
		c.Header("X-Model-Used", "fallback")
		if h.notify != nil && req.SessionID != "" {
			_ = h.notify.SchedulePendingReview(ctx, req.SessionID, "inquiry")
		}
		if h.store != nil && req.SessionID != "" {
			_ = h.store.AppendInquiry(ctx, req.SessionID, "assistant", fallbackReply)
		}
		sse.StreamText(c, fallbackReply)
		return
	}

	c.Header("X-Model-Used", model)
	sse.Stream(c, h.recorded(req.SessionID, stream))
}

// recorded tees the stream so the assistant's full reply lands in the
// inquiries table once the stream closes.
func (h *Handler) recorded(sessionID string, in <-chan string) <-chan string {
	if h.store == nil || sessionID == "" {
		return in
	}
	out := make(chan string)
	go func() {
		defer close(out)
		var full strings.Builder
		for tok := range in {
			full.WriteString(tok)
			out <- tok
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.store.AppendInquiry(ctx, sessionID, "assistant", full.String())
	}()
	return out
}

func (h *Handler) history(ctx context.Context, sessionID string) []openai.Message {
	if h.store == nil || sessionID == "" {
		return nil
	}
	stored, err := h.store.InquiryHistory(ctx, sessionID)
	if err != nil {
		return nil
	}
	msgs := make([]openai.Message, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, openai.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// basicMetrics derives BMI from the wizard's basic-info payload when
// height and weight are present.
func basicMetrics(info map[string]any) map[string]any {
	height := numField(info, "height_cm")
	weight := numField(info, "weight_kg")
	bmi := sessions.BMI(height, weight)
	if bmi == 0 {
		return nil
	}
	return map[string]any{
		"bmi":          bmi,
		"bmi_category": sessions.BMICategory(bmi),
	}
}

func numField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			return f
		}
	}
	return 0
}
