// Package upstream performs the gateway's outbound calls to the Anthropic
// Messages API and the OpenAI Chat Completions API, streaming the
// response into an sse.StreamContext as bytes arrive.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ctrlai/gatewayd/internal/sse"
)

// Provider identifies which upstream dialect a call targets.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Request describes one outbound call.
type Request struct {
	Provider Provider
	BaseURL  string
	APIKey   string
	Model    string
	Body     map[string]any // caller-assembled JSON body, minus "stream"
}

// Client performs tuned HTTP calls to upstream providers: high idle-conn
// reuse, no compression (so SSE bytes arrive unmodified), HTTP/2
// attempted, and no blanket client timeout — streaming responses can run
// for minutes.
type Client struct {
	http *http.Client
}

// New builds a Client with the gateway's standard transport tuning.
func New() *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
	}
	return &Client{http: &http.Client{Transport: transport}}
}

// Stream issues the request and feeds every response chunk into sc,
// returning once the upstream body is fully read or the context is
// cancelled. "stream": true is always injected into the request body.
func (c *Client) Stream(ctx context.Context, req Request, sc *sse.StreamContext) error {
	reqID := uuid.NewString()

	body := map[string]any{}
	for k, v := range req.Body {
		body[k] = v
	}
	body["model"] = req.Model
	body["stream"] = true

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("upstream: marshal request body: %w", err)
	}

	url, err := endpointFor(req.Provider, req.BaseURL)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", reqID)
	applyAuthHeaders(httpReq, req)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("upstream: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream: status %d", resp.StatusCode)
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			sc.Feed(buf[:n])
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("upstream: stream read: %w", readErr)
		}
	}
}

func endpointFor(provider Provider, baseURL string) (string, error) {
	switch provider {
	case ProviderAnthropic:
		return baseURL + "/v1/messages", nil
	case ProviderOpenAI:
		return baseURL + "/v1/chat/completions", nil
	default:
		return "", fmt.Errorf("upstream: unknown provider %q", provider)
	}
}

func applyAuthHeaders(httpReq *http.Request, req Request) {
	switch req.Provider {
	case ProviderAnthropic:
		httpReq.Header.Set("x-api-key", req.APIKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")
	case ProviderOpenAI:
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}
}
