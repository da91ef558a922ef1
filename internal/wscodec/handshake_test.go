package wscodec

import (
	"testing"

	"github.com/ctrlai/gatewayd/internal/httpcodec"
)

func TestAcceptKeyRFC6455Vector(t *testing.T) {
	// The canonical example from RFC 6455 §1.3.
	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Errorf("AcceptKey = %q, want %q", got, want)
	}
}

func TestIsUpgradeRequest(t *testing.T) {
	p := httpcodec.NewParser()
	raw := "GET /ws HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Connection: Upgrade\r\n" +
		"Upgrade: websocket\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"

	status, err := p.Feed([]byte(raw))
	if err != nil || status != httpcodec.Complete {
		t.Fatalf("parse failed: %v %v", status, err)
	}
	if !IsUpgradeRequest(p.Request()) {
		t.Fatalf("expected IsUpgradeRequest to be true")
	}
}

func TestIsUpgradeRequestRejectsPlainGET(t *testing.T) {
	p := httpcodec.NewParser()
	p.Feed([]byte("GET /health HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	if IsUpgradeRequest(p.Request()) {
		t.Fatalf("expected plain GET to not be an upgrade request")
	}
}
