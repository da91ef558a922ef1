package httpcodec

import "testing"

func TestParserSimpleGET(t *testing.T) {
	p := NewParser()
	raw := "GET /v1/chat/completions?foo=bar HTTP/1.1\r\nHost: localhost\r\nConnection: keep-alive\r\n\r\n"

	status, err := p.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Complete {
		t.Fatalf("expected Complete, got %v", status)
	}

	req := p.Request()
	if req.Method != MethodGET {
		t.Errorf("method = %q, want GET", req.Method)
	}
	if req.Path != "/v1/chat/completions" {
		t.Errorf("path = %q", req.Path)
	}
	if req.Query != "foo=bar" {
		t.Errorf("query = %q", req.Query)
	}
	if !req.KeepAlive() {
		t.Errorf("expected keep-alive true")
	}
	host, ok := req.Headers.Get("host")
	if !ok || host != "localhost" {
		t.Errorf("Host header case-insensitive lookup failed: %q, %v", host, ok)
	}
}

func TestParserIncrementalBody(t *testing.T) {
	p := NewParser()
	head := "POST /hooks/webchat HTTP/1.1\r\nContent-Length: 5\r\n\r\n"

	status, err := p.Feed([]byte(head))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != NeedMore {
		t.Fatalf("expected NeedMore after headers only, got %v", status)
	}

	status, err = p.Feed([]byte("abc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != NeedMore {
		t.Fatalf("expected NeedMore with partial body, got %v", status)
	}

	status, err = p.Feed([]byte("de"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Complete {
		t.Fatalf("expected Complete once full body arrives, got %v", status)
	}
	if string(p.Request().Body) != "abcde" {
		t.Errorf("body = %q, want abcde", p.Request().Body)
	}
}

func TestParserRejectsOversizedHeaderCount(t *testing.T) {
	p := NewParser()
	raw := "GET / HTTP/1.1\r\n"
	for i := 0; i < MaxHeaderCount+5; i++ {
		raw += "X-Pad: 1\r\n"
	}
	raw += "\r\n"

	status, err := p.Feed([]byte(raw))
	if status != ProtocolError || err == nil {
		t.Fatalf("expected ProtocolError for oversized header count, got %v, %v", status, err)
	}
}

func TestParserRejectsBodyOverMax(t *testing.T) {
	p := NewParser()
	raw := "POST / HTTP/1.1\r\nContent-Length: 999999999999\r\n\r\n"

	status, err := p.Feed([]byte(raw))
	if status != ProtocolError || err == nil {
		t.Fatalf("expected ProtocolError for oversized Content-Length, got %v, %v", status, err)
	}
}

func TestParserReset(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("GET / HTTP/1.1\r\n\r\n"))
	p.Reset()
	status, err := p.Feed([]byte("GET /second HTTP/1.1\r\n\r\n"))
	if err != nil || status != Complete {
		t.Fatalf("expected clean reparse after Reset, got %v, %v", status, err)
	}
	if p.Request().Path != "/second" {
		t.Errorf("path after reset = %q", p.Request().Path)
	}
}

func TestResponseBuilderInjectsContentLength(t *testing.T) {
	body := []byte(`{"ok":true}`)
	resp := NewResponse(200).
		Header("Content-Type", "application/json").
		Body(body).
		Bytes()

	got := string(resp)
	want := "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 11\r\n\r\n{\"ok\":true}"
	if got != want {
		t.Errorf("response mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}
