package router

import (
	"strings"
	"testing"

	"github.com/ctrlai/gatewayd/internal/httpcodec"
)

func req(method httpcodec.Method, path string) *httpcodec.ParsedRequest {
	return &httpcodec.ParsedRequest{Method: method, Path: path}
}

func TestExactMatchWins(t *testing.T) {
	r := New()
	r.Handle(httpcodec.MethodGET, "/health", func(*httpcodec.ParsedRequest) []byte {
		return []byte("health")
	})

	got := string(r.Dispatch(req(httpcodec.MethodGET, "/health")))
	if got != "health" {
		t.Errorf("got %q", got)
	}
}

func TestFirstRegisteredWildcardWins(t *testing.T) {
	r := New()
	r.Handle(httpcodec.MethodGET, "/sessions/*", func(*httpcodec.ParsedRequest) []byte {
		return []byte("first")
	})
	r.Handle(httpcodec.MethodGET, "/sessions/*", func(*httpcodec.ParsedRequest) []byte {
		return []byte("second")
	})

	got := string(r.Dispatch(req(httpcodec.MethodGET, "/sessions/abc123")))
	if got != "first" {
		t.Errorf("expected first-registered route to win, got %q", got)
	}
}

func TestWildcardOnlyMatchesPrefix(t *testing.T) {
	r := New()
	r.Handle(httpcodec.MethodGET, "/tools*", func(*httpcodec.ParsedRequest) []byte {
		return []byte("tools")
	})

	if string(r.Dispatch(req(httpcodec.MethodGET, "/toolsshelf"))) != "tools" {
		t.Errorf("expected prefix match on /toolsshelf")
	}
	got := r.Dispatch(req(httpcodec.MethodGET, "/other"))
	if !strings.Contains(string(got), "Not Found") {
		t.Errorf("expected 404 for non-matching path, got %q", got)
	}
}

func TestOptionsShortCircuitsToPreflight(t *testing.T) {
	r := New()
	r.Handle(httpcodec.MethodPOST, "/v1/chat/completions", func(*httpcodec.ParsedRequest) []byte {
		return []byte("should not be called")
	})

	resp := string(r.Dispatch(req(httpcodec.MethodOPTIONS, "/v1/chat/completions")))
	if !strings.HasPrefix(resp, "HTTP/1.1 204") {
		t.Errorf("expected 204 preflight, got %q", resp)
	}
	if !strings.Contains(resp, "Access-Control-Allow-Methods: GET, POST, OPTIONS") {
		t.Errorf("missing CORS methods header: %q", resp)
	}
}

func TestNoMatchYields404JSON(t *testing.T) {
	r := New()
	resp := string(r.Dispatch(req(httpcodec.MethodGET, "/nope")))
	if !strings.HasPrefix(resp, "HTTP/1.1 404") {
		t.Errorf("expected 404 status line, got %q", resp)
	}
	if !strings.Contains(resp, `{"error":"Not Found"}`) {
		t.Errorf("expected JSON error body, got %q", resp)
	}
}
