package inspection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"tcm-backend/config"
	"tcm-backend/pipeline"
	"tcm-backend/prompts"
)

type mockRunner struct {
	result  pipeline.Result
	lastReq pipeline.Request
}

func (m *mockRunner) Run(ctx context.Context, req pipeline.Request) pipeline.Result {
	m.lastReq = req
	if m.result.Degraded {
		m.result.Payload = req.FallbackPayload
	}
	return m.result
}

func setupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func newHandler(m *mockRunner) *Handler {
	sel := pipeline.NewSelector(config.AIConfig{ExpertModels: []string{"expert-1"}})
	return NewHandler(m, sel, prompts.NewRepository(nil), nil, nil, config.AIConfig{})
}

func post(r *gin.Engine, path string, body map[string]any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validImage() string {
	return base64.StdEncoding.EncodeToString([]byte("fake jpeg bytes"))
}

func TestTongue_OK(t *testing.T) {
	m := &mockRunner{result: pipeline.Result{
		Payload:   map[string]any{"observation": "舌淡红，苔薄白", "confidence": 88.0},
		ModelUsed: "expert-1",
	}}
	h := newHandler(m)
	w := post(setupRouter(h), "/inspection/tongue", map[string]any{"image": validImage()})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Model-Used"); got != "expert-1" {
		t.Errorf("X-Model-Used = %q", got)
	}
	if m.lastReq.ImageURL == "" || m.lastReq.ImageURL[:5] != "data:" {
		t.Errorf("expected data URL, got %q", m.lastReq.ImageURL)
	}
	if !m.lastReq.JSONMode {
		t.Error("inspection must run in JSON mode")
	}
}

func TestFace_DegradedStill200(t *testing.T) {
	m := &mockRunner{result: pipeline.Result{Degraded: true}}
	h := newHandler(m)
	w := post(setupRouter(h), "/inspection/face", map[string]any{"image": validImage()})

	if w.Code != http.StatusOK {
		t.Fatalf("degraded analysis should still be 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Model-Used"); got != "fallback" {
		t.Errorf("X-Model-Used = %q, want fallback", got)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "pending_review" {
		t.Errorf("fallback payload missing pending_review status: %v", resp)
	}
}

func TestTongue_MissingImageRejected(t *testing.T) {
	h := newHandler(&mockRunner{})
	w := post(setupRouter(h), "/inspection/tongue", map[string]any{"session_id": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTongue_NonBase64Rejected(t *testing.T) {
	h := newHandler(&mockRunner{})
	w := post(setupRouter(h), "/inspection/tongue", map[string]any{"image": "!!not base64!!"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
