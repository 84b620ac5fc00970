package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider talks to an FCM-compatible push gateway over HTTP/JSON.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	serverKey  string
}

// NewHTTPProvider builds a provider client for the given gateway base URL.
// serverKey is sent as a bearer token on every call.
func NewHTTPProvider(baseURL, serverKey string) *HTTPProvider {
	return &HTTPProvider{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:   baseURL,
		serverKey: serverKey,
	}
}

// SendMulticast issues one multicast send. The tokens slice must not exceed
// MaxTokensPerSend; the gateway rejects oversized batches, so we fail fast
// here instead of round-tripping.
func (p *HTTPProvider) SendMulticast(ctx context.Context, msg *MulticastMessage) (*BatchResponse, error) {
	if len(msg.Tokens) == 0 {
		return nil, fmt.Errorf("push: no tokens in multicast message")
	}
	if len(msg.Tokens) > MaxTokensPerSend {
		return nil, fmt.Errorf("push: %d tokens exceeds multicast limit of %d", len(msg.Tokens), MaxTokensPerSend)
	}

	jsonBody, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("push: marshal multicast message: %w", err)
	}

	url := p.baseURL + "/messages:send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.serverKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.serverKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("push: gateway error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var batch BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("push: decode response: %w", err)
	}
	if len(batch.Responses) != len(msg.Tokens) {
		return nil, fmt.Errorf("push: gateway returned %d results for %d tokens", len(batch.Responses), len(msg.Tokens))
	}

	return &batch, nil
}
