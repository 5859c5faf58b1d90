package pulse

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tcm-backend/config"
	"tcm-backend/notifications"
	"tcm-backend/openai"
	"tcm-backend/pipeline"
	"tcm-backend/prompts"
	"tcm-backend/sessions"
)

type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

const analysisSchema = `{
	"type": "object",
	"required": ["observation"],
	"properties": {
		"observation": {"type": "string"},
		"pulse_type": {"type": "string"}
	}
}`

var analysisAliases = []string{"observation", "analysis", "description"}

func fallbackPayload(rateClass string) map[string]any {
	return map[string]any{
		"observation": "脉象解读暂不可用，医师将人工复核。",
		"pulse_type":  rateClass,
		"confidence":  0,
		"is_valid":    false,
		"status":      "pending_review",
	}
}

type Handler struct {
	ai       Runner
	selector *pipeline.Selector
	prompts  *prompts.Repository
	store    *sessions.Repository
	notify   *notifications.Repository
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
	r.POST("/pulse", h.Analyze)
}

type pulseReq struct {
	SessionID string `json:"session_id"`
	Rate      int    `json:"rate"` // beats per minute
	Rhythm    string `json:"rhythm"`
	Strength  string `json:"strength"`
	Depth     string `json:"depth"`
	Language  string `json:"language"`
}

// Analyze combines the deterministic rate classification with a
// pipeline-generated interpretation of the manually entered pulse.
func (h *Handler) Analyze(c *gin.Context) {
	var req pulseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.Rate < 20 || req.Rate > 250 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pulse rate out of measurable range"})
		return
	}

	rateClass := RateClass(req.Rate)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	system := prompts.Assemble(h.prompts.TemplateFor(ctx, "pulse_palpation"), map[string]string{
		"rate":     strconv.Itoa(req.Rate),
		"rhythm":   req.Rhythm,
		"strength": req.Strength,
		"depth":    req.Depth,
	}, req.Language)

	res := h.ai.Run(ctx, pipeline.Request{
		Endpoint:        "pulse",
		SystemPrompt:    system,
		Messages:        []openai.Message{{Role: "user", Content: "请完成切诊解读。"}},
		Candidates:      h.selector.Candidates(pipeline.TierFast),
		JSONMode:        true,
		Schema:          analysisSchema,
		Aliases:         analysisAliases,
		FallbackPayload: fallbackPayload(rateClass),
	})
	res.Payload["rate"] = req.Rate
	res.Payload["rate_class"] = rateClass

	if req.SessionID != "" {
		if h.store != nil {
			_ = h.store.SaveStep(ctx, req.SessionID, sessions.StepPulse, res.Payload, res.ModelUsed, res.Degraded)
		}
		if res.Degraded && h.notify != nil {
			_ = h.notify.SchedulePendingReview(ctx, req.SessionID, "pulse")
		}
	}

	if res.Degraded {
		c.Header("X-Model-Used", "fallback")
	} else {
		c.Header("X-Model-Used", res.ModelUsed)
	}
	c.JSON(http.StatusOK, res.Payload)
}

// RateClass maps beats per minute to the classical rate category. The
// boundaries follow the usual 一息四至/五至 conversion at rest.
func RateClass(rate int) string {
	switch {
	case rate < 60:
		return "迟脉"
	case rate <= 90:
		return "平脉"
	case rate <= 120:
		return "数脉"
	default:
		return "疾脉"
	}
}
