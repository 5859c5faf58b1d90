package inspection

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
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

// analysisSchema is the contract every inspection payload must satisfy
// once parsed. Confidence and is_valid checks run separately in the
// validator.
const analysisSchema = `{
	"type": "object",
	"required": ["observation"],
	"properties": {
		"observation": {"type": "string"},
		"features": {"type": "array", "items": {"type": "string"}},
		"indications": {}
	}
}`

var analysisAliases = []string{"observation", "analysis", "description"}

func fallbackPayload() map[string]any {
	return map[string]any{
		"observation": "影像分析暂不可用，医师将人工复核。",
		"features":    []string{},
		"indications": "",
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
	timeout := cfg.VisionTimeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Handler{ai: ai, selector: sel, prompts: pr, store: store, notify: notify, timeout: timeout}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/inspection/tongue", h.Tongue)
	r.POST("/inspection/face", h.Face)
}

type imageReq struct {
	SessionID string `json:"session_id"`
	Image     string `json:"image"` // base64, no data-URL prefix
	Mime      string `json:"mime"`
	Language  string `json:"language"`
	Age       string `json:"age"`
	Sex       string `json:"sex"`
}

func (h *Handler) Tongue(c *gin.Context) {
	h.analyze(c, "tongue_inspection")
}

func (h *Handler) Face(c *gin.Context) {
	h.analyze(c, "face_inspection")
}

func (h *Handler) analyze(c *gin.Context, role string) {
	var req imageReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Image) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}
	if _, err := base64.StdEncoding.DecodeString(firstChunk(req.Image)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image must be base64"})
		return
	}
	mime := req.Mime
	if mime == "" {
		mime = "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	system := prompts.Assemble(h.prompts.TemplateFor(ctx, role), map[string]string{
		"age": req.Age,
		"sex": req.Sex,
	}, req.Language)

	res := h.ai.Run(ctx, pipeline.Request{
		Endpoint:        "inspection",
		SystemPrompt:    system,
		Messages:        []openai.Message{{Role: "user", Content: "请分析这张照片。"}},
		ImageURL:        "data:" + mime + ";base64," + req.Image,
		Candidates:      h.selector.Candidates(pipeline.TierExpert),
		JSONMode:        true,
		Schema:          analysisSchema,
		Aliases:         analysisAliases,
		FallbackPayload: fallbackPayload(),
	})

	h.persist(ctx, req.SessionID, res)
	respondModel(c, res)
	c.JSON(http.StatusOK, res.Payload)
}

func (h *Handler) persist(ctx context.Context, sessionID string, res pipeline.Result) {
	if sessionID == "" {
		return
	}
	if h.store != nil {
		_ = h.store.SaveStep(ctx, sessionID, sessions.StepInspection, res.Payload, res.ModelUsed, res.Degraded)
	}
	if res.Degraded && h.notify != nil {
		_ = h.notify.SchedulePendingReview(ctx, sessionID, "inspection")
	}
}

func respondModel(c *gin.Context, res pipeline.Result) {
	if res.Degraded {
		c.Header("X-Model-Used", "fallback")
		return
	}
	c.Header("X-Model-Used", res.ModelUsed)
}

// firstChunk bounds the decode check; full payloads can be several MB
// and one block is enough to catch non-base64 bodies.
func firstChunk(s string) string {
	if len(s) > 512 {
		s = s[:512]
	}
	return s[:len(s)-len(s)%4]
}
