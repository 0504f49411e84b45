package dispatcher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPScheduleClient calls the scheduling API over HTTP.
type HTTPScheduleClient struct {
	client *http.Client
}

func NewHTTPScheduleClient() *HTTPScheduleClient {
	return &HTTPScheduleClient{
		client: &http.Client{},
	}
}

// Create posts the event payload with an HMAC signature.
// Headers: X-EventBot-Attempt-ID, X-EventBot-Signature
func (c *HTTPScheduleClient) Create(ctx context.Context, req CreateRequest) CreateResult {
	start := time.Now()

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return CreateResult{Error: fmt.Errorf("marshal: %w", err), Duration: time.Since(start)}
	}

	signature := computeSignature(req.Endpoint.Secret, body)

	timeout := req.Endpoint.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, req.Endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return CreateResult{Error: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-EventBot-Attempt-ID", req.AttemptID)
	httpReq.Header.Set("X-EventBot-Signature", signature)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return CreateResult{Error: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	return CreateResult{StatusCode: resp.StatusCode, Duration: time.Since(start)}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature lets the scheduling API side verify incoming requests.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
