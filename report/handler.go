package report

import (
	"context"
	"encoding/json"
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

const reportSchema = `{
	"type": "object",
	"required": ["syndrome", "analysis"],
	"properties": {
		"syndrome": {"type": "string"},
		"analysis": {"type": "string"},
		"recommendations": {"type": "array", "items": {"type": "string"}},
		"herbs_note": {"type": "string"}
	}
}`

var reportAliases = []string{"analysis", "observation", "description"}

func fallbackPayload() map[string]any {
	return map[string]any{
		"syndrome":        "待定",
		"analysis":        "诊断报告暂不可用，医师将人工复核后出具。",
		"recommendations": []string{},
		"herbs_note":      "",
		"confidence":      0,
		"is_valid":        false,
		"status":          "pending_review",
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
	timeout := cfg.ReportTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Handler{ai: ai, selector: sel, prompts: pr, store: store, notify: notify, timeout: timeout}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/report", h.Generate)
	r.GET("/report/:id/pdf", h.ExportPDF)
}

type generateReq struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
	Tier      string `json:"tier"`
}

// Generate synthesizes the final diagnostic report from every stored
// intake section. The report step always uses the strongest tier unless
// the caller narrows it.
func (h *Handler) Generate(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	contextFields := h.sessionContext(ctx, req.SessionID)
	system := prompts.Assemble(h.prompts.TemplateFor(ctx, "diagnostic_report"), contextFields, req.Language)

	tier := req.Tier
	if tier == "" {
		tier = pipeline.TierMaster
	}
	res := h.ai.Run(ctx, pipeline.Request{
		Endpoint:        "report",
		SystemPrompt:    system,
		Messages:        []openai.Message{{Role: "user", Content: "请生成诊断报告。"}},
		Candidates:      h.selector.Candidates(tier),
		JSONMode:        true,
		Schema:          reportSchema,
		Aliases:         reportAliases,
		FallbackPayload: fallbackPayload(),
	})

	if h.store != nil {
		_ = h.store.SaveStep(ctx, req.SessionID, sessions.StepReport, res.Payload, res.ModelUsed, res.Degraded)
	}
	if h.notify != nil {
		if res.Degraded {
			_ = h.notify.SchedulePendingReview(ctx, req.SessionID, "report")
		} else {
			_ = h.notify.ScheduleReportReady(ctx, req.SessionID)
		}
	}

	if res.Degraded {
		c.Header("X-Model-Used", "fallback")
	} else {
		c.Header("X-Model-Used", res.ModelUsed)
	}
	out := gin.H{"session_id": req.SessionID, "report": res.Payload}
	c.JSON(http.StatusOK, out)
}

// ExportPDF renders the stored report for printing / doctor records.
func (h *Handler) ExportPDF(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	id := c.Param("id")
	s, err := h.store.Get(c.Request.Context(), id)
	if err != nil || s == nil || len(s.Report) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	doc, err := RenderPDF(s)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pdf rendering failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="diagnosis_`+id+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

// sessionContext collects the stored step payloads as compact JSON for
// prompt interpolation. Missing sections interpolate as empty strings;
// the template tolerates that.
func (h *Handler) sessionContext(ctx context.Context, sessionID string) map[string]string {
	fields := map[string]string{
		"basic_info":      "",
		"inquiry_summary": "",
		"inspection":      "",
		"listening":       "",
		"pulse":           "",
	}
	if h.store == nil {
		return fields
	}
	s, err := h.store.Get(ctx, sessionID)
	if err != nil || s == nil {
		return fields
	}
	fields["basic_info"] = compactJSON(s.BasicInfo)
	fields["inspection"] = compactJSON(s.Inspection)
	fields["listening"] = compactJSON(s.Listening)
	fields["pulse"] = compactJSON(s.Pulse)

	if history, err := h.store.InquiryHistory(ctx, sessionID); err == nil && len(history) > 0 {
		var b strings.Builder
		for _, m := range history {
			b.WriteString(m.Role)
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
		fields["inquiry_summary"] = b.String()
	}
	return fields
}

func compactJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
