package listening

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
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

type mockSTT struct {
	text string
	err  error
}

func (m *mockSTT) Transcribe(ctx context.Context, filePath string) (string, error) {
	return m.text, m.err
}

func setup(m *mockRunner, stt *mockSTT) (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	sel := pipeline.NewSelector(config.AIConfig{ExpertModels: []string{"expert-1"}})
	h := NewHandler(m, stt, sel, prompts.NewRepository(nil), nil, nil, config.AIConfig{})
	h.tmpDir = os.TempDir()
	r := gin.New()
	h.RegisterRoutes(r)
	return r, h
}

func post(r *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/listening/audio", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validAudio() string {
	return base64.StdEncoding.EncodeToString([]byte("fake audio bytes"))
}

func TestAudio_OK(t *testing.T) {
	m := &mockRunner{result: pipeline.Result{
		Payload:   map[string]any{"observation": "声音低微，气短懒言"},
		ModelUsed: "expert-1",
	}}
	r, _ := setup(m, &mockSTT{text: "我最近总是很累"})

	w := post(r, map[string]any{"audio": validAudio(), "format": "wav"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["transcript"] != "我最近总是很累" {
		t.Errorf("transcript missing from response: %v", resp)
	}
	if !strings.Contains(m.lastReq.SystemPrompt, "我最近总是很累") {
		t.Error("transcript not interpolated into the system prompt")
	}
}

func TestAudio_TranscriptionFailureDegrades(t *testing.T) {
	r, _ := setup(&mockRunner{}, &mockSTT{err: errors.New("whisper down")})

	w := post(r, map[string]any{"audio": validAudio(), "format": "mp3"})
	if w.Code != http.StatusOK {
		t.Fatalf("degraded should still be 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Model-Used"); got != "fallback" {
		t.Errorf("X-Model-Used = %q, want fallback", got)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "pending_review" {
		t.Errorf("expected pending_review payload, got %v", resp)
	}
}

func TestAudio_UnsupportedFormatRejected(t *testing.T) {
	r, _ := setup(&mockRunner{}, &mockSTT{})
	w := post(r, map[string]any{"audio": validAudio(), "format": "exe"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAudio_MissingAudioRejected(t *testing.T) {
	r, _ := setup(&mockRunner{}, &mockSTT{})
	w := post(r, map[string]any{"format": "wav"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
