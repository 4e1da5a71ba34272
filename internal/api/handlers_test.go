package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"chatcli/internal/config"
	"chatcli/internal/models"
	"chatcli/internal/service/ai"
	"chatcli/internal/session"
	"chatcli/internal/storage"
)

type countingCounter struct{}

func (countingCounter) Count(conv []models.Message, _ string) int {
	n := 0
	for _, m := range conv {
		n += len(m.Content)
	}
	return n
}

func (countingCounter) CountText(text, _ string) int { return len(text) }

type mockGateway struct {
	errs  []error
	calls int
}

func (g *mockGateway) Send(_ context.Context, conv []models.Message, _ ai.Options) (*ai.Reply, error) {
	g.calls++
	if g.calls <= len(g.errs) && g.errs[g.calls-1] != nil {
		return nil, g.errs[g.calls-1]
	}
	return &ai.Reply{
		Text:  "echo: " + conv[len(conv)-1].Content,
		Usage: models.Usage{PromptTokens: 5, CompletionTokens: 3},
	}, nil
}

func TestHandlersEndToEndFlow(t *testing.T) {
	gw := &mockGateway{}
	router, db := newTestServer(t, gw)
	defer db.Close()

	chatResp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]string{"content": "hi"})
	assertStatus(t, chatResp, http.StatusOK)
	var chatBody struct {
		Reply       string       `json:"reply"`
		Usage       models.Usage `json:"usage"`
		Cost        string       `json:"cost"`
		Priced      bool         `json:"priced"`
		SessionCost string       `json:"session_cost"`
	}
	decodeJSON(t, chatResp.Body.Bytes(), &chatBody)
	if chatBody.Reply != "echo: hi" || !chatBody.Priced {
		t.Fatalf("unexpected chat response: %+v", chatBody)
	}
	if chatBody.Cost != "0.000007" || chatBody.SessionCost != "0.000007" {
		t.Fatalf("unexpected cost: %+v", chatBody)
	}
	if chatBody.Usage.PromptTokens != 5 || chatBody.Usage.CompletionTokens != 3 {
		t.Fatalf("unexpected usage: %+v", chatBody.Usage)
	}

	histResp := doJSONRequest(t, router, http.MethodGet, "/api/history", nil)
	assertStatus(t, histResp, http.StatusOK)
	var histBody struct {
		SessionID string           `json:"session_id"`
		Messages  []models.Message `json:"messages"`
	}
	decodeJSON(t, histResp.Body.Bytes(), &histBody)
	if histBody.SessionID != "test-session" || len(histBody.Messages) != 2 {
		t.Fatalf("unexpected history: %+v", histBody)
	}
	if histBody.Messages[1].Role != models.RoleAssistant {
		t.Fatalf("expected assistant reply last, got %+v", histBody.Messages[1])
	}

	statsResp := doJSONRequest(t, router, http.MethodGet, "/api/stats", nil)
	assertStatus(t, statsResp, http.StatusOK)
	var statsBody struct {
		Turns  int    `json:"turns"`
		Cost   string `json:"cost"`
		Ledger struct {
			Turns int    `json:"turns"`
			Cost  string `json:"cost"`
		} `json:"ledger"`
	}
	decodeJSON(t, statsResp.Body.Bytes(), &statsBody)
	if statsBody.Turns != 1 || statsBody.Ledger.Turns != 1 || statsBody.Ledger.Cost != "0.000007" {
		t.Fatalf("unexpected stats: %+v", statsBody)
	}
}

func TestCaptureInputValidation(t *testing.T) {
	gw := &mockGateway{}
	router, db := newTestServer(t, gw)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]string{"content": "   "})
	assertStatus(t, resp, http.StatusBadRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusBadRequest)

	if gw.calls != 0 {
		t.Fatalf("gateway should not be called, got %d calls", gw.calls)
	}
}

func TestCaptureInputGatewayFailureRollsBack(t *testing.T) {
	gw := &mockGateway{errs: []error{ai.Classify(errors.New("error, status code: 401, message: bad key"))}}
	router, db := newTestServer(t, gw)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]string{"content": "hi"})
	assertStatus(t, resp, http.StatusBadGateway)

	histResp := doJSONRequest(t, router, http.MethodGet, "/api/history", nil)
	var histBody struct {
		Messages []models.Message `json:"messages"`
	}
	decodeJSON(t, histResp.Body.Bytes(), &histBody)
	if len(histBody.Messages) != 0 {
		t.Fatalf("failed turn left messages behind: %+v", histBody.Messages)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrEmptyInput, http.StatusBadRequest},
		{session.ErrContextOverflow, http.StatusRequestEntityTooLarge},
		{session.ErrExited, http.StatusGone},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{ai.ErrRetriesExhausted, http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func newTestServer(t *testing.T, gw ai.Gateway) (*gin.Engine, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	ledger, err := storage.NewLedger(db)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	chat := session.New(gw, countingCounter{}, session.Config{Model: "gpt-4o-mini"},
		session.WithOutput(&bytes.Buffer{}),
		session.WithRecorder(ledger),
		session.WithID("test-session"),
	)
	handler := NewHandler(chat, ledger)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}
