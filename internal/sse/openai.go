package sse

import "encoding/json"

// handleOpenAI dispatches one OpenAI Chat Completions SSE event:
// `data: [DONE]` terminates the stream; otherwise the payload is JSON
// carrying choices[0].delta.content and/or a usage object.
func (sc *StreamContext) handleOpenAI(ev Event) {
	if ev.Data == "[DONE]" {
		sc.finish()
		return
	}

	var payload struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
		return
	}

	if len(payload.Choices) > 0 {
		sc.emitText(payload.Choices[0].Delta.Content)
	}
	if payload.Usage != nil {
		sc.usage.InputTokens = payload.Usage.PromptTokens
		sc.usage.OutputTokens = payload.Usage.CompletionTokens
	}
}
