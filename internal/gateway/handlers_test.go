package gateway

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ctrlai/gatewayd/internal/config"
	"github.com/ctrlai/gatewayd/internal/httpcodec"
	"github.com/ctrlai/gatewayd/internal/session"
	"github.com/ctrlai/gatewayd/internal/tool"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	cfg := &config.Config{
		Server:          config.ServerConfig{Host: "127.0.0.1", Port: 0},
		DefaultProvider: "anthropic",
		Providers: map[string]config.ProviderConfig{
			"anthropic": {BaseURL: "http://127.0.0.1:0", APIKeyEnv: "GATEWAYD_TEST_KEY", DefaultModel: "claude-3-5-sonnet-20241022"},
		},
		Session:        config.SessionConfig{HistoryLimit: 50},
		WorkerPoolSize: 2,
	}
	store, err := session.Open(t.TempDir() + "/sessions.db")
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(nil, cfg, store, tool.NewRegistry())
}

func TestHandleHealthShape(t *testing.T) {
	h := newTestHandlers(t)
	body := h.handleHealth()
	payload := extractJSONBody(t, body)
	var parsed map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("health body not JSON: %v", err)
	}
	if parsed["status"] != "ok" {
		t.Errorf("status = %v, want ok", parsed["status"])
	}
	if _, ok := parsed["uptime_seconds"]; !ok {
		t.Errorf("health body missing uptime_seconds: %s", payload)
	}
}

func TestHandleToolsListsBuiltins(t *testing.T) {
	h := newTestHandlers(t)
	body := h.handleTools()
	payload := extractJSONBody(t, body)
	var entries []map[string]any
	if err := json.Unmarshal(payload, &entries); err != nil {
		t.Fatalf("tools body not a JSON array: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected builtin tools to be registered")
	}
}

func TestRunWebhookRejectsMissingMessage(t *testing.T) {
	h := newTestHandlers(t)
	body := h.runWebhook([]byte(`{}`))
	payload := extractJSONBody(t, body)
	if !strings.Contains(string(payload), "message") {
		t.Errorf("expected error mentioning missing message field, got %s", payload)
	}
}

func TestRunWebhookRejectsInvalidJSON(t *testing.T) {
	h := newTestHandlers(t)
	body := h.runWebhook([]byte(`not json`))
	if !strings.Contains(string(body), "400") {
		t.Errorf("expected a 400 status line, got %s", body)
	}
}

func TestCheckAuthAllowsHealthWithoutToken(t *testing.T) {
	h := newTestHandlers(t)
	h.cfg.Auth.BearerToken = "secret"
	req := &httpcodec.ParsedRequest{Method: httpcodec.MethodGET, Path: "/health"}
	if !h.checkAuth(req) {
		t.Error("expected /health to bypass bearer auth")
	}
}

func TestCheckAuthRejectsMissingToken(t *testing.T) {
	h := newTestHandlers(t)
	h.cfg.Auth.BearerToken = "secret"
	req := &httpcodec.ParsedRequest{Method: httpcodec.MethodGET, Path: "/tools"}
	if h.checkAuth(req) {
		t.Error("expected request without Authorization header to be rejected")
	}
}

func TestCheckAuthAcceptsMatchingToken(t *testing.T) {
	h := newTestHandlers(t)
	h.cfg.Auth.BearerToken = "secret"
	req := &httpcodec.ParsedRequest{
		Method:  httpcodec.MethodGET,
		Path:    "/tools",
		Headers: httpcodec.HeaderList{{Key: "Authorization", Value: "Bearer secret"}},
	}
	if !h.checkAuth(req) {
		t.Error("expected matching bearer token to be accepted")
	}
}

// extractJSONBody strips the status line and headers a ResponseBuilder
// produces, returning just the body bytes.
func extractJSONBody(t *testing.T, raw []byte) []byte {
	t.Helper()
	idx := strings.Index(string(raw), "\r\n\r\n")
	if idx == -1 {
		t.Fatalf("response missing header terminator: %q", raw)
	}
	return raw[idx+4:]
}
