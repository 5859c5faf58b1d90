package report

import (
	"bytes"
	"context"
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

func setup(m *mockRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	sel := pipeline.NewSelector(config.AIConfig{
		ExpertModels: []string{"expert-1"},
		MasterModels: []string{"master-1", "expert-1"},
	})
	h := NewHandler(m, sel, prompts.NewRepository(nil), nil, nil, config.AIConfig{})
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func post(r *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/report", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenerate_OK(t *testing.T) {
	m := &mockRunner{result: pipeline.Result{
		Payload: map[string]any{
			"syndrome": "肝郁脾虚证",
			"analysis": "情志不畅，肝失疏泄，木郁克土。",
		},
		ModelUsed: "master-1",
	}}
	r := setup(m)

	w := post(r, map[string]any{"session_id": "s-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Model-Used"); got != "master-1" {
		t.Errorf("X-Model-Used = %q, want master-1", got)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["session_id"] != "s-1" {
		t.Errorf("session_id = %v, want s-1", resp["session_id"])
	}
	rep, _ := resp["report"].(map[string]any)
	if rep["syndrome"] != "肝郁脾虚证" {
		t.Errorf("syndrome missing from report: %v", rep)
	}
	// Report generation defaults to the strongest tier.
	if len(m.lastReq.Candidates) == 0 || m.lastReq.Candidates[0] != "master-1" {
		t.Errorf("candidates = %v, want master tier first", m.lastReq.Candidates)
	}
}

func TestGenerate_DegradedStill200(t *testing.T) {
	m := &mockRunner{result: pipeline.Result{Degraded: true}}
	r := setup(m)

	w := post(r, map[string]any{"session_id": "s-2"})
	if w.Code != http.StatusOK {
		t.Fatalf("degraded should still be 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Model-Used"); got != "fallback" {
		t.Errorf("X-Model-Used = %q, want fallback", got)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	rep, _ := resp["report"].(map[string]any)
	if rep["status"] != "pending_review" {
		t.Errorf("expected pending_review report, got %v", rep)
	}
}

func TestGenerate_TierOverride(t *testing.T) {
	m := &mockRunner{result: pipeline.Result{
		Payload:   map[string]any{"syndrome": "平和", "analysis": "无明显偏颇。"},
		ModelUsed: "expert-1",
	}}
	r := setup(m)

	w := post(r, map[string]any{"session_id": "s-3", "tier": "expert"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(m.lastReq.Candidates) == 0 || m.lastReq.Candidates[0] != "expert-1" {
		t.Errorf("candidates = %v, want expert tier", m.lastReq.Candidates)
	}
}

func TestGenerate_MissingSessionRejected(t *testing.T) {
	r := setup(&mockRunner{})
	w := post(r, map[string]any{"language": "zh"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestExportPDF_NoStoreIs404(t *testing.T) {
	r := setup(&mockRunner{})
	req := httptest.NewRequest(http.MethodGet, "/report/s-1/pdf", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
