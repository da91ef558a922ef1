// Package gateway wires the Reactor, Router, UpstreamClient, SSEParser,
// SessionStore, and ToolRegistry together into the gateway's HTTP and
// WebSocket endpoints, plus a handful of read-only introspection routes.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ctrlai/gatewayd/internal/config"
	"github.com/ctrlai/gatewayd/internal/httpcodec"
	"github.com/ctrlai/gatewayd/internal/reactor"
	"github.com/ctrlai/gatewayd/internal/router"
	"github.com/ctrlai/gatewayd/internal/session"
	"github.com/ctrlai/gatewayd/internal/sse"
	"github.com/ctrlai/gatewayd/internal/tool"
	"github.com/ctrlai/gatewayd/internal/upstream"
	"github.com/ctrlai/gatewayd/internal/wscodec"
)

const version = "0.1.0"

// maxToolRounds bounds how many tool-use round-trips a single chat turn
// may take before the gateway gives up and returns whatever text the
// model has produced so far.
const maxToolRounds = 4

// Handlers implements reactor.Dispatcher and owns every component the
// gateway's endpoints need.
type Handlers struct {
	log      *slog.Logger
	cfg      *config.Config
	sessions *session.Store
	tools    *tool.Registry
	upclient *upstream.Client
	pool     *workerPool
	react    *reactor.Reactor
	routes   *router.Router

	startedAt     time.Time
	totalRequests int64
}

// New constructs Handlers. SetReactor must be called once the owning
// Reactor exists, since the Reactor and its Dispatcher are mutually
// referential (the Reactor calls Dispatch; async task completions call
// back into the Reactor via NotifyCompletion).
func New(log *slog.Logger, cfg *config.Config, sessions *session.Store, tools *tool.Registry) *Handlers {
	h := &Handlers{
		log:       log,
		cfg:       cfg,
		sessions:  sessions,
		tools:     tools,
		upclient:  upstream.New(),
		startedAt: time.Now(),
	}
	h.pool = newWorkerPool(cfg.WorkerPoolSize, h.deliver)

	h.routes = router.New()
	h.routes.Handle(httpcodec.MethodGET, "/health", func(req *httpcodec.ParsedRequest) []byte { return h.handleHealth() })
	h.routes.Handle(httpcodec.MethodGET, "/tools", func(req *httpcodec.ParsedRequest) []byte { return h.handleTools() })
	h.routes.Handle(httpcodec.MethodGET, "/sessions/*", h.handleSessionGet)

	return h
}

// SetReactor binds the Reactor this Handlers instance dispatches through.
func (h *Handlers) SetReactor(r *reactor.Reactor) {
	h.react = r
}

func (h *Handlers) deliver(fd int, response []byte) {
	h.react.NotifyCompletion(reactor.Completion{Fd: fd, Response: response})
}

// Dispatch implements reactor.Dispatcher. The two upstream-bound POST
// routes are intercepted ahead of the Router so they can be submitted to
// the worker pool instead of answered synchronously; everything else —
// including the OPTIONS preflight and the 404 fallback — goes through
// the Router.
func (h *Handlers) Dispatch(conn *reactor.Connection, req *httpcodec.ParsedRequest) reactor.Outcome {
	atomic.AddInt64(&h.totalRequests, 1)

	if req.Method != httpcodec.MethodOPTIONS && !h.checkAuth(req) {
		return reactor.Outcome{Response: jsonResponse(401, map[string]string{"error": "unauthorized"})}
	}

	switch {
	case req.Method == httpcodec.MethodPOST && req.Path == "/hooks/webchat":
		return h.dispatchAsync(conn, req, h.runWebhook)
	case req.Method == httpcodec.MethodPOST && req.Path == "/v1/chat/completions":
		return h.dispatchAsync(conn, req, h.runChatCompletions)
	default:
		return reactor.Outcome{Response: h.routes.Dispatch(req)}
	}
}

// dispatchAsync submits an upstream-bound request to the worker pool. If
// the pool's queue is full, it responds synchronously with 503 instead
// of blocking the reactor goroutine.
func (h *Handlers) dispatchAsync(conn *reactor.Connection, req *httpcodec.ParsedRequest, run func(body []byte) []byte) reactor.Outcome {
	body := append([]byte(nil), req.Body...)
	fd := conn.Fd
	submitted := h.pool.Submit(fd, func() []byte { return run(body) })
	if !submitted {
		return reactor.Outcome{Response: jsonResponse(503, map[string]string{"error": "worker pool saturated"})}
	}
	return reactor.Outcome{Async: true}
}

func (h *Handlers) checkAuth(req *httpcodec.ParsedRequest) bool {
	if req.Path == "/health" {
		return true
	}
	token := h.cfg.Auth.BearerToken
	if token == "" {
		return true
	}
	got, ok := req.Headers.Get("Authorization")
	if !ok {
		return false
	}
	return got == "Bearer "+token
}

// handleHealth is the gateway's liveness/metrics endpoint.
func (h *Handlers) handleHealth() []byte {
	uptime := int(time.Since(h.startedAt).Seconds())
	return jsonResponse(200, map[string]any{
		"status":             "ok",
		"version":            version,
		"uptime_seconds":     uptime,
		"total_requests":     atomic.LoadInt64(&h.totalRequests),
		"active_connections": h.activeConnections(),
	})
}

func (h *Handlers) activeConnections() int {
	if h.react == nil {
		return 0
	}
	return h.react.ActiveConnections()
}

// handleTools is a read-only introspection endpoint listing the tool catalog.
func (h *Handlers) handleTools() []byte {
	catalog, err := h.tools.Catalog()
	if err != nil {
		return jsonResponse(500, map[string]string{"error": "failed to build tool catalog"})
	}
	return httpcodec.NewResponse(200).
		Header("Content-Type", "application/json").
		Header("Access-Control-Allow-Origin", "*").
		Body(catalog).
		Bytes()
}

// handleSessionGet is a read-only introspection endpoint:
// GET /sessions/{id} returns that session's history.
func (h *Handlers) handleSessionGet(req *httpcodec.ParsedRequest) []byte {
	id := strings.TrimPrefix(req.Path, "/sessions/")
	if id == "" {
		return jsonResponse(400, map[string]string{"error": "missing session id"})
	}
	raw, err := h.sessions.HistoryJSON(id, h.cfg.Session.HistoryLimit)
	if err != nil {
		return jsonResponse(500, map[string]string{"error": "failed to load session history"})
	}
	return httpcodec.NewResponse(200).
		Header("Content-Type", "application/json").
		Header("Access-Control-Allow-Origin", "*").
		Body(raw).
		Bytes()
}

// webhookRequest is the body shape for POST /hooks/webchat.
type webhookRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// runWebhook implements the one-shot chat endpoint. It runs on a worker
// goroutine, never the reactor thread.
func (h *Handlers) runWebhook(body []byte) []byte {
	var wreq webhookRequest
	if err := json.Unmarshal(body, &wreq); err != nil {
		return webhookError(400, "Invalid JSON body")
	}
	if wreq.Message == "" {
		return webhookError(400, "Missing 'message' field")
	}

	provider := upstream.Provider(h.cfg.DefaultProvider)
	pc, apiKey, err := providerConfig(h.cfg, provider)
	if err != nil {
		return webhookError(500, err.Error())
	}

	sessionID, err := h.sessions.EnsureSession(wreq.SessionID, "webchat")
	if err != nil {
		h.log.Error("webhook: session setup failed", "error", err)
	} else {
		_ = h.sessions.AppendMessage(sessionID, "user", wreq.Message)
	}

	dialect := sse.DialectOpenAI
	if provider == upstream.ProviderAnthropic {
		dialect = sse.DialectAnthropic
	}

	messages := []map[string]any{{"role": "user", "content": wreq.Message}}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	text, _, forwarded, err := h.runToolLoop(ctx, provider, pc, apiKey, pc.DefaultModel, messages, dialect, nil)
	if err != nil {
		return webhookError(502, "AI API request failed")
	}

	if sessionID != "" && text != "" {
		_ = h.sessions.AppendMessage(sessionID, "assistant", text)
	}

	resp := map[string]any{
		"response": text,
		"model":    pc.DefaultModel,
	}
	if sessionID != "" {
		resp["session_id"] = sessionID
	}
	if len(forwarded) > 0 {
		resp["forwarded_tool_calls"] = forwarded
	}
	return jsonResponse(200, resp)
}

// chatMessage mirrors the OpenAI-shaped message entries accepted by
// POST /v1/chat/completions.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionsRequest is the body shape for the OpenAI-compatible path.
type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// runChatCompletions implements the OpenAI-compatible path.
func (h *Handlers) runChatCompletions(body []byte) []byte {
	var creq chatCompletionsRequest
	if err := json.Unmarshal(body, &creq); err != nil {
		return chatError(400, "Invalid JSON body", "invalid_request_error")
	}
	if len(creq.Messages) == 0 {
		return chatError(400, "Missing 'messages' field", "invalid_request_error")
	}

	var systemOverride string
	for _, m := range creq.Messages {
		if m.Role == "system" {
			systemOverride = m.Content
			break
		}
	}

	provider := resolveProvider(h.cfg, creq.Model, systemOverride)
	pc, apiKey, err := providerConfig(h.cfg, provider)
	if err != nil {
		return chatError(500, err.Error(), "server_error")
	}

	model := creq.Model
	if model == "" {
		model = pc.DefaultModel
	}

	dialect := sse.DialectOpenAI
	if provider == upstream.ProviderAnthropic {
		dialect = sse.DialectAnthropic
	}

	messages := make([]map[string]any, 0, len(creq.Messages))
	for _, m := range creq.Messages {
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}

	extra := map[string]any{}
	if creq.MaxTokens > 0 {
		extra["max_tokens"] = creq.MaxTokens
	}
	if creq.Temperature != 0 {
		extra["temperature"] = creq.Temperature
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	text, usage, forwarded, err := h.runToolLoop(ctx, provider, pc, apiKey, model, messages, dialect, extra)
	if err != nil {
		return chatError(502, "AI API request failed", "server_error")
	}

	finishReason := "stop"
	if len(forwarded) > 0 {
		finishReason = "tool_calls"
	}

	resp := map[string]any{
		"id":      fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano()),
		"object":  "chat.completion",
		"model":   model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       chatMessage{Role: "assistant", Content: text},
			"finish_reason": finishReason,
		}},
		"usage": map[string]int{
			"prompt_tokens":     usage.InputTokens,
			"completion_tokens": usage.OutputTokens,
			"total_tokens":      usage.InputTokens + usage.OutputTokens,
		},
	}
	if len(forwarded) > 0 {
		resp["forwarded_tool_calls"] = forwarded
	}
	return jsonResponse(200, resp)
}

// ForwardedToolCall is a tool invocation the registry marked as delegated
// to an external caller (the desktop shim contract, tool.IsDesktopShim)
// rather than executed in-process. The registry performs no forwarding
// itself; runToolLoop stops the turn and hands these back to the client
// instead of feeding a synthetic result to the model.
type ForwardedToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

// runToolLoop streams one upstream turn and, if the model emits tool_use
// signals (Anthropic dialect only — the OpenAI SSE parser does not decode
// function-call deltas), executes each via the tool registry and feeds
// the results back as a follow-up turn. It stops when the model produces
// a turn with no tool calls, when a tool call is forwarded rather than
// executed, or after maxToolRounds turns.
func (h *Handlers) runToolLoop(ctx context.Context, provider upstream.Provider, pc config.ProviderConfig, apiKey, model string, messages []map[string]any, dialect sse.Dialect, extra map[string]any) (string, sse.Usage, []ForwardedToolCall, error) {
	var text string
	var usage sse.Usage
	var forwarded []ForwardedToolCall

	for round := 0; round < maxToolRounds; round++ {
		var builder strings.Builder
		var toolUses []sse.ToolUse
		var streamErr string

		sc := sse.NewStreamContext(dialect)
		sc.OnText = func(s string) { builder.WriteString(s) }
		sc.OnDone = func(u sse.Usage) { usage = u }
		sc.OnError = func(msg string) { streamErr = msg }
		if dialect == sse.DialectAnthropic {
			sc.OnToolUse = func(tu sse.ToolUse) { toolUses = append(toolUses, tu) }
		}

		reqBody := map[string]any{"messages": messages}
		for k, v := range extra {
			reqBody[k] = v
		}
		if dialect == sse.DialectAnthropic {
			if _, ok := reqBody["max_tokens"]; !ok {
				reqBody["max_tokens"] = 4096
			}
			if catalog, catErr := h.tools.Catalog(); catErr == nil {
				var decoded any
				if json.Unmarshal(catalog, &decoded) == nil {
					reqBody["tools"] = decoded
				}
			}
		}

		reqErr := h.upclient.Stream(ctx, upstream.Request{
			Provider: provider,
			BaseURL:  pc.BaseURL,
			APIKey:   apiKey,
			Model:    model,
			Body:     reqBody,
		}, sc)

		text = builder.String()
		if reqErr != nil || streamErr != "" {
			return "", sse.Usage{}, nil, fmt.Errorf("upstream stream failed")
		}

		if len(toolUses) == 0 {
			return text, usage, nil, nil
		}

		assistantContent := make([]map[string]any, 0, len(toolUses)+1)
		if text != "" {
			assistantContent = append(assistantContent, map[string]any{"type": "text", "text": text})
		}
		for _, tu := range toolUses {
			var input any
			if json.Unmarshal([]byte(tu.Input), &input) != nil {
				input = map[string]any{}
			}
			assistantContent = append(assistantContent, map[string]any{
				"type": "tool_use", "id": tu.ID, "name": tu.Name, "input": input,
			})
		}
		messages = append(messages, map[string]any{"role": "assistant", "content": assistantContent})

		resultContent := make([]map[string]any, 0, len(toolUses))
		for _, tu := range toolUses {
			res := h.tools.Execute(tu.Name, tu.Input)
			if res.Forwarded {
				forwarded = append(forwarded, ForwardedToolCall{ID: tu.ID, Name: tu.Name, Input: tu.Input})
				continue
			}
			resultContent = append(resultContent, map[string]any{
				"type": "tool_result", "tool_use_id": tu.ID, "content": res.Output, "is_error": res.IsError,
			})
		}
		if len(forwarded) > 0 {
			return text, usage, forwarded, nil
		}

		messages = append(messages, map[string]any{"role": "user", "content": resultContent})
	}

	return text, usage, forwarded, nil
}

// OnWSFrame implements reactor.Dispatcher: a minimal echo contract for
// text frames, plus ping/pong keepalive.
func (h *Handlers) OnWSFrame(conn *reactor.Connection, frame wscodec.Frame) (reply []byte, closeConn bool) {
	switch frame.Opcode {
	case wscodec.OpText:
		return wscodec.TextFrame(string(frame.Payload)), false
	case wscodec.OpPing:
		return wscodec.WriteFrame(wscodec.OpPong, frame.Payload, true), false
	default:
		return nil, false
	}
}
