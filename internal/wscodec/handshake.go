// Package wscodec implements the RFC 6455 WebSocket upgrade handshake and
// frame codec from scratch. Like httpcodec, it never delegates to a
// ready-made WebSocket library for the wire format — the Reactor owns the
// bytes; wscodec only turns them into frames and back.
package wscodec

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"github.com/ctrlai/gatewayd/internal/httpcodec"
)

// magicGUID is the fixed RFC 6455 §1.3 handshake constant.
const magicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes the Sec-WebSocket-Accept value for a given
// Sec-WebSocket-Key: base64(SHA1(key + magicGUID)).
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(magicGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsUpgradeRequest reports whether a parsed HTTP request is a valid
// WebSocket upgrade request: GET, Connection contains "upgrade" (may be a
// comma list per RFC 7230), Upgrade is "websocket", and a non-empty
// Sec-WebSocket-Key is present.
func IsUpgradeRequest(req *httpcodec.ParsedRequest) bool {
	if req.Method != httpcodec.MethodGET {
		return false
	}
	conn, ok := req.Headers.Get("Connection")
	if !ok || !containsToken(conn, "upgrade") {
		return false
	}
	upgrade, ok := req.Headers.Get("Upgrade")
	if !ok || !strings.EqualFold(strings.TrimSpace(upgrade), "websocket") {
		return false
	}
	key, ok := req.Headers.Get("Sec-WebSocket-Key")
	return ok && key != ""
}

// containsToken reports whether a comma-separated header value contains
// token, case-insensitively, ignoring surrounding whitespace per token.
func containsToken(headerValue, token string) bool {
	for _, part := range strings.Split(headerValue, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// BuildAcceptResponse constructs the 101 Switching Protocols response for
// a validated upgrade request.
func BuildAcceptResponse(key string) []byte {
	return httpcodec.NewResponse(101).
		Header("Upgrade", "websocket").
		Header("Connection", "Upgrade").
		Header("Sec-WebSocket-Accept", AcceptKey(key)).
		Body(nil).
		BytesNoLength()
}
