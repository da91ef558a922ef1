package gateway

import (
	"encoding/json"

	"github.com/ctrlai/gatewayd/internal/httpcodec"
)

// jsonResponse serializes v as the body of a status response with
// Content-Type: application/json and the CORS header every response
// carries.
func jsonResponse(status int, v any) []byte {
	body, err := json.Marshal(v)
	if err != nil {
		body = []byte(`{"error":"internal error encoding response"}`)
		status = 500
	}
	return httpcodec.NewResponse(status).
		Header("Content-Type", "application/json").
		Header("Access-Control-Allow-Origin", "*").
		Body(body).
		Bytes()
}

// webhookError builds the `{"error": "..."}` envelope used by the
// /hooks/webchat path.
func webhookError(status int, message string) []byte {
	return jsonResponse(status, map[string]string{"error": message})
}

// chatError builds the `{"error": {"message","type"}}` envelope used by
// the OpenAI-compatible path.
func chatError(status int, message, errType string) []byte {
	return jsonResponse(status, map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    errType,
		},
	})
}
