package sse

import "testing"

func TestScanEventsSplitAcrossChunks(t *testing.T) {
	var got []Event
	buf := []byte("event: content_block_delta\ndata: {\"delta\":{\"type\":\"text_delta\",\"text\":\"pon")
	events, consumed := ScanEvents(buf)
	if len(events) != 0 || consumed != 0 {
		t.Fatalf("expected no complete event mid-chunk, got %d events consumed=%d", len(events), consumed)
	}

	buf = append(buf, []byte("g\"}}\n\n")...)
	events, consumed = ScanEvents(buf)
	got = events
	if consumed != len(buf) {
		t.Fatalf("expected full buffer consumed, got %d of %d", consumed, len(buf))
	}
	if len(got) != 1 || got[0].Name != "content_block_delta" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestAnthropicStreamAggregatesText(t *testing.T) {
	var textOut string
	var doneUsage Usage
	done := false

	sc := NewStreamContext(DialectAnthropic)
	sc.OnText = func(s string) { textOut += s }
	sc.OnDone = func(u Usage) { doneUsage = u; done = true }

	sc.Feed([]byte("event: content_block_delta\ndata: {\"delta\":{\"type\":\"text_delta\",\"text\":\"pon\"}}\n\n"))
	sc.Feed([]byte("event: content_block_delta\ndata: {\"delta\":{\"type\":\"text_delta\",\"text\":\"g\"}}\n\n"))
	sc.Feed([]byte("event: message_delta\ndata: {\"usage\":{\"input_tokens\":3,\"output_tokens\":1}}\n\n"))
	sc.Feed([]byte("event: message_stop\ndata: {}\n\n"))

	if textOut != "pong" {
		t.Errorf("text = %q, want pong", textOut)
	}
	if !done {
		t.Fatalf("expected OnDone to fire")
	}
	if doneUsage.InputTokens != 3 || doneUsage.OutputTokens != 1 {
		t.Errorf("usage = %+v", doneUsage)
	}
}

func TestAnthropicStreamError(t *testing.T) {
	var gotErr string
	sc := NewStreamContext(DialectAnthropic)
	sc.OnError = func(msg string) { gotErr = msg }

	sc.Feed([]byte("event: error\ndata: {\"error\":{\"message\":\"overloaded\"}}\n\n"))
	if gotErr != "overloaded" {
		t.Errorf("error = %q, want overloaded", gotErr)
	}
}

func TestOpenAIStreamDoneSentinel(t *testing.T) {
	var textOut string
	done := false

	sc := NewStreamContext(DialectOpenAI)
	sc.OnText = func(s string) { textOut += s }
	sc.OnDone = func(Usage) { done = true }

	sc.Feed([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"))
	sc.Feed([]byte("data: [DONE]\n\n"))

	if textOut != "hi" {
		t.Errorf("text = %q, want hi", textOut)
	}
	if !done {
		t.Fatalf("expected OnDone on [DONE] sentinel")
	}
}

func TestAnthropicStreamAssemblesToolUse(t *testing.T) {
	var got ToolUse
	var textOut string
	fired := false

	sc := NewStreamContext(DialectAnthropic)
	sc.OnText = func(s string) { textOut += s }
	sc.OnToolUse = func(tu ToolUse) { got = tu; fired = true }

	sc.Feed([]byte("event: content_block_start\ndata: {\"index\":0,\"content_block\":{\"type\":\"text\"}}\n\n"))
	sc.Feed([]byte("event: content_block_delta\ndata: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"checking...\"}}\n\n"))
	sc.Feed([]byte("event: content_block_stop\ndata: {\"index\":0}\n\n"))
	sc.Feed([]byte("event: content_block_start\ndata: {\"index\":1,\"content_block\":{\"type\":\"tool_use\",\"id\":\"toolu_1\",\"name\":\"read_file\"}}\n\n"))
	sc.Feed([]byte("event: content_block_delta\ndata: {\"index\":1,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"path\\\":\"}}\n\n"))
	sc.Feed([]byte("event: content_block_delta\ndata: {\"index\":1,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"\\\"a.txt\\\"}\"}}\n\n"))
	sc.Feed([]byte("event: content_block_stop\ndata: {\"index\":1}\n\n"))

	if !fired {
		t.Fatalf("expected OnToolUse to fire")
	}
	if got.ID != "toolu_1" || got.Name != "read_file" {
		t.Errorf("tool use = %+v", got)
	}
	if got.Input != `{"path":"a.txt"}` {
		t.Errorf("assembled input = %q", got.Input)
	}
	if textOut != "checking..." {
		t.Errorf("text = %q, want checking...", textOut)
	}
}

func TestSkipsPingEvents(t *testing.T) {
	calls := 0
	sc := NewStreamContext(DialectAnthropic)
	sc.OnText = func(string) { calls++ }
	sc.Feed([]byte("event: ping\ndata: {}\n\n"))
	if calls != 0 {
		t.Errorf("ping event should not emit text, got %d calls", calls)
	}
}
