package sse

// Dialect discriminates the two upstream provider streaming encodings
// this gateway understands.
type Dialect int

const (
	DialectAnthropic Dialect = iota
	DialectOpenAI
)

// Usage accumulates token counts reported mid-stream.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ToolUse is one complete tool invocation signal assembled from a
// dialect's streamed content blocks (Anthropic's content_block_start /
// input_json_delta / content_block_stop triple).
type ToolUse struct {
	ID    string
	Name  string
	Input string
}

// StreamContext is the per-upstream-request state threaded through one
// streamed response: dialect, callbacks, running token counters, and the
// unconsumed tail of SSE bytes carried across chunk boundaries.
type StreamContext struct {
	Dialect Dialect

	OnText    func(text string)
	OnDone    func(usage Usage)
	OnError   func(message string)
	OnToolUse func(tu ToolUse)

	buf        []byte
	usage      Usage
	done       bool
	toolBlocks map[int]*pendingToolUse
}

// NewStreamContext constructs a StreamContext for one upstream request.
func NewStreamContext(dialect Dialect) *StreamContext {
	return &StreamContext{Dialect: dialect}
}

// Feed appends a newly-received chunk of upstream bytes and dispatches
// every complete event found so far to the dialect-specific handler.
func (sc *StreamContext) Feed(chunk []byte) {
	if sc.done {
		return
	}
	sc.buf = append(sc.buf, chunk...)

	events, consumed := ScanEvents(sc.buf)
	if consumed > 0 {
		sc.buf = append([]byte(nil), sc.buf[consumed:]...)
	}

	for _, ev := range events {
		if sc.done {
			return
		}
		switch sc.Dialect {
		case DialectAnthropic:
			sc.handleAnthropic(ev)
		case DialectOpenAI:
			sc.handleOpenAI(ev)
		}
	}
}

// Usage returns the token counts accumulated so far.
func (sc *StreamContext) Usage() Usage {
	return sc.usage
}

func (sc *StreamContext) finish() {
	sc.done = true
	if sc.OnDone != nil {
		sc.OnDone(sc.usage)
	}
}

func (sc *StreamContext) emitText(text string) {
	if text == "" {
		return
	}
	if sc.OnText != nil {
		sc.OnText(text)
	}
}

func (sc *StreamContext) emitError(message string) {
	sc.done = true
	if sc.OnError != nil {
		sc.OnError(message)
	}
}
