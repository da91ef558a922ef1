package sse

import (
	"encoding/json"
	"strings"
)

// pendingToolUse accumulates one tool_use content block's streamed
// input_json_delta fragments until content_block_stop closes it.
type pendingToolUse struct {
	id    string
	name  string
	input strings.Builder
}

// handleAnthropic dispatches one Anthropic Messages API SSE event.
func (sc *StreamContext) handleAnthropic(ev Event) {
	switch ev.Name {
	case "ping":
		return

	case "content_block_start":
		var payload struct {
			Index        int `json:"index"`
			ContentBlock struct {
				Type string `json:"type"`
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"content_block"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			return
		}
		if payload.ContentBlock.Type == "tool_use" {
			if sc.toolBlocks == nil {
				sc.toolBlocks = make(map[int]*pendingToolUse)
			}
			sc.toolBlocks[payload.Index] = &pendingToolUse{
				id:   payload.ContentBlock.ID,
				name: payload.ContentBlock.Name,
			}
		}

	case "content_block_delta":
		var payload struct {
			Index int `json:"index"`
			Delta struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				PartialJSON string `json:"partial_json"`
			} `json:"delta"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			return
		}
		switch payload.Delta.Type {
		case "text_delta":
			sc.emitText(payload.Delta.Text)
		case "input_json_delta":
			if tb, ok := sc.toolBlocks[payload.Index]; ok {
				tb.input.WriteString(payload.Delta.PartialJSON)
			}
		}

	case "content_block_stop":
		var payload struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			return
		}
		if tb, ok := sc.toolBlocks[payload.Index]; ok {
			delete(sc.toolBlocks, payload.Index)
			if sc.OnToolUse != nil {
				sc.OnToolUse(ToolUse{ID: tb.id, Name: tb.name, Input: tb.input.String()})
			}
		}

	case "message_delta":
		var payload struct {
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			return
		}
		if payload.Usage.InputTokens > 0 {
			sc.usage.InputTokens = payload.Usage.InputTokens
		}
		if payload.Usage.OutputTokens > 0 {
			sc.usage.OutputTokens = payload.Usage.OutputTokens
		}

	case "message_stop":
		sc.finish()

	case "error":
		var payload struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal([]byte(ev.Data), &payload)
		msg := payload.Error.Message
		if msg == "" {
			msg = "upstream error"
		}
		sc.emitError(msg)
	}
}
