package listening

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
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
)

type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

// Transcriber converts an audio file to text before the analysis
// pipeline runs. Implemented by openai.Client.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath string) (string, error)
}

const analysisSchema = `{
	"type": "object",
	"required": ["observation"],
	"properties": {
		"observation": {"type": "string"},
		"features": {"type": "array", "items": {"type": "string"}}
	}
}`

var analysisAliases = []string{"observation", "analysis", "description"}

func fallbackPayload() map[string]any {
	return map[string]any{
		"observation": "语音分析暂不可用，医师将人工复核。",
		"features":    []string{},
		"transcript":  "",
		"confidence":  0,
		"is_valid":    false,
		"status":      "pending_review",
	}
}

type Handler struct {
	ai       Runner
	stt      Transcriber
	selector *pipeline.Selector
	prompts  *prompts.Repository
	store    *sessions.Repository
	notify   *notifications.Repository
	timeout  time.Duration
	tmpDir   string
}

func NewHandler(ai Runner, stt Transcriber, sel *pipeline.Selector, pr *prompts.Repository, store *sessions.Repository, notify *notifications.Repository, cfg config.AIConfig) *Handler {
	timeout := cfg.VisionTimeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Handler{ai: ai, stt: stt, selector: sel, prompts: pr, store: store, notify: notify, timeout: timeout, tmpDir: "./tmp"}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/listening/audio", h.Audio)
}

type audioReq struct {
	SessionID string `json:"session_id"`
	Audio     string `json:"audio"`  // base64
	Format    string `json:"format"` // mp3, wav, m4a, ogg, webm
	Language  string `json:"language"`
}

var allowedFormats = map[string]bool{
	"mp3": true, "wav": true, "m4a": true, "aac": true,
	"flac": true, "ogg": true, "webm": true,
}

// Audio transcribes the patient's voice sample and runs the listening
// analysis over the transcript. Transcription failure is treated like
// any provider failure: the endpoint degrades instead of erroring.
func (h *Handler) Audio(c *gin.Context) {
	var req audioReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Audio) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio is required"})
		return
	}
	format := strings.ToLower(strings.TrimPrefix(req.Format, "."))
	if format == "" {
		format = "webm"
	}
	if !allowedFormats[format] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported audio format"})
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio must be base64"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	transcript, err := h.transcribe(ctx, raw, format)
	if err != nil || strings.TrimSpace(transcript) == "" {
		res := pipeline.Result{Payload: fallbackPayload(), Degraded: true}
		h.persist(ctx, req.SessionID, res)
		respondModel(c, res)
		c.JSON(http.StatusOK, res.Payload)
		return
	}

	system := prompts.Assemble(h.prompts.TemplateFor(ctx, "voice_listening"), map[string]string{
		"transcript": transcript,
	}, req.Language)

	res := h.ai.Run(ctx, pipeline.Request{
		Endpoint:        "listening",
		SystemPrompt:    system,
		Messages:        []openai.Message{{Role: "user", Content: "请完成闻诊分析。"}},
		Candidates:      h.selector.Candidates(pipeline.TierExpert),
		JSONMode:        true,
		Schema:          analysisSchema,
		Aliases:         analysisAliases,
		FallbackPayload: fallbackPayload(),
	})
	if !res.Degraded {
		res.Payload["transcript"] = transcript
	}

	h.persist(ctx, req.SessionID, res)
	respondModel(c, res)
	c.JSON(http.StatusOK, res.Payload)
}

func (h *Handler) transcribe(ctx context.Context, raw []byte, format string) (string, error) {
	if err := os.MkdirAll(h.tmpDir, 0o755); err != nil {
		return "", err
	}
	tmp := filepath.Join(h.tmpDir, uuid.NewString()+"."+format)
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", err
	}
	defer os.Remove(tmp)
	return h.stt.Transcribe(ctx, tmp)
}

func (h *Handler) persist(ctx context.Context, sessionID string, res pipeline.Result) {
	if sessionID == "" {
		return
	}
	if h.store != nil {
		_ = h.store.SaveStep(ctx, sessionID, sessions.StepListening, res.Payload, res.ModelUsed, res.Degraded)
	}
	if res.Degraded && h.notify != nil {
		_ = h.notify.SchedulePendingReview(ctx, sessionID, "listening")
	}
}

func respondModel(c *gin.Context, res pipeline.Result) {
	if res.Degraded {
		c.Header("X-Model-Used", "fallback")
		return
	}
	c.Header("X-Model-Used", res.ModelUsed)
}
