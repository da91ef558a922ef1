package upstream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ctrlai/gatewayd/internal/sse"
)

func TestStreamInjectsModelAndStreamFlag(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: message_stop\ndata: {}\n\n"))
	}))
	defer srv.Close()

	c := New()
	sc := sse.NewStreamContext(sse.DialectAnthropic)
	err := c.Stream(t.Context(), Request{
		Provider: ProviderAnthropic,
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		Model:    "claude-3-5-sonnet-20241022",
		Body:     map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}},
	}, sc)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !strings.Contains(gotBody, `"stream":true`) {
		t.Errorf("request body missing stream:true: %s", gotBody)
	}
	if !strings.Contains(gotBody, `"model":"claude-3-5-sonnet-20241022"`) {
		t.Errorf("request body missing injected model: %s", gotBody)
	}
}

func TestStreamReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New()
	sc := sse.NewStreamContext(sse.DialectAnthropic)
	err := c.Stream(t.Context(), Request{
		Provider: ProviderAnthropic,
		BaseURL:  srv.URL,
		APIKey:   "bad-key",
		Model:    "claude-3-5-sonnet-20241022",
		Body:     map[string]any{},
	}, sc)
	if err == nil {
		t.Fatal("expected error on 401 response")
	}
}

func TestApplyAuthHeadersPerProvider(t *testing.T) {
	anthReq, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	applyAuthHeaders(anthReq, Request{Provider: ProviderAnthropic, APIKey: "k1"})
	if anthReq.Header.Get("x-api-key") != "k1" {
		t.Errorf("anthropic request missing x-api-key header")
	}
	if anthReq.Header.Get("anthropic-version") == "" {
		t.Errorf("anthropic request missing anthropic-version header")
	}

	oaiReq, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	applyAuthHeaders(oaiReq, Request{Provider: ProviderOpenAI, APIKey: "k2"})
	if oaiReq.Header.Get("Authorization") != "Bearer k2" {
		t.Errorf("openai request missing bearer header, got %q", oaiReq.Header.Get("Authorization"))
	}
}

func TestEndpointForUnknownProvider(t *testing.T) {
	if _, err := endpointFor("bogus", "http://x"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
