package httpcodec

import (
	"fmt"
	"strconv"
	"strings"
)

// reasonPhrases covers the status codes this gateway actually emits.
// Anything else falls back to a generic phrase rather than failing to
// build a response.
var reasonPhrases = map[int]string{
	200: "OK",
	204: "No Content",
	400: "Bad Request",
	401: "Unauthorized",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	429: "Too Many Requests",
	500: "Internal Server Error",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

func reasonPhrase(status int) string {
	if p, ok := reasonPhrases[status]; ok {
		return p
	}
	return "Status"
}

// ResponseBuilder assembles an HTTP/1.1 response byte-for-byte: status
// line, caller-supplied headers, an always-computed-last Content-Length,
// a blank line, then the body. It never touches net/http.
type ResponseBuilder struct {
	status  int
	headers HeaderList
	body    []byte
}

// NewResponse starts a builder for the given status code.
func NewResponse(status int) *ResponseBuilder {
	return &ResponseBuilder{status: status}
}

// Header appends a response header. Order of calls is preserved on the
// wire, ahead of the Content-Length line this builder injects.
func (b *ResponseBuilder) Header(key, value string) *ResponseBuilder {
	b.headers = append(b.headers, Header{Key: key, Value: value})
	return b
}

// Body sets the response body and returns the builder for chaining.
func (b *ResponseBuilder) Body(data []byte) *ResponseBuilder {
	b.body = data
	return b
}

// Bytes serializes the response: status line, headers, an injected
// Content-Length computed from the final body, a blank line, then body.
func (b *ResponseBuilder) Bytes() []byte {
	return b.serialize(true)
}

// BytesNoLength serializes the response without injecting a
// Content-Length header, for responses where one is not meaningful (101
// Switching Protocols has no body per RFC 7230 §3.3.2).
func (b *ResponseBuilder) BytesNoLength() []byte {
	return b.serialize(false)
}

func (b *ResponseBuilder) serialize(withLength bool) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "HTTP/1.1 %d %s\r\n", b.status, reasonPhrase(b.status))
	for _, h := range b.headers {
		fmt.Fprintf(&sb, "%s: %s\r\n", h.Key, h.Value)
	}
	if withLength {
		sb.WriteString("Content-Length: " + strconv.Itoa(len(b.body)) + "\r\n")
	}
	sb.WriteString("\r\n")

	out := make([]byte, 0, sb.Len()+len(b.body))
	out = append(out, sb.String()...)
	out = append(out, b.body...)
	return out
}
