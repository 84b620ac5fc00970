package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/protocol-chat/notify-backend/internal/fanout"
	"github.com/protocol-chat/notify-backend/internal/push"
)

// PushTester serves the operational test-push endpoint: it sends a real
// push to one user's registered tokens and applies the same cleanup rule
// as the fan-out path, so an operator can verify delivery end to end.
type PushTester struct {
	tokens   fanout.TokenSource
	provider push.Provider
	audit    fanout.Auditor
}

func NewPushTester(tokens fanout.TokenSource, provider push.Provider, audit fanout.Auditor) *PushTester {
	return &PushTester{tokens: tokens, provider: provider, audit: audit}
}

// TestPushResponse is the diagnostic result returned to the operator.
type TestPushResponse struct {
	OK            bool              `json:"ok"`
	Error         string            `json:"error,omitempty"`
	Message       string            `json:"message,omitempty"`
	TokensFound   int               `json:"tokensFound"`
	TokensSent    int               `json:"tokensSent,omitempty"`
	RemovedTokens []string          `json:"removedTokens,omitempty"`
	Results       []push.SendResult `json:"results,omitempty"`
}

// SendTestPush handles GET/POST with a uid in the query or JSON body.
// Responds 400 on missing uid, 200 with tokensFound: 0 when the user has no
// registrations, 500 on an unexpected provider error.
func (h *PushTester) SendTestPush(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	uid := r.URL.Query().Get("uid")
	if uid == "" && r.Method == http.MethodPost {
		var body struct {
			UID string `json:"uid"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			uid = body.UID
		}
	}
	if uid == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(TestPushResponse{OK: false, Error: "Missing uid param"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	tokens, err := h.tokens.Tokens(ctx, uid)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(TestPushResponse{OK: false, Error: err.Error()})
		return
	}
	tokens = fanout.Dedupe(tokens)
	if len(tokens) == 0 {
		_ = json.NewEncoder(w).Encode(TestPushResponse{OK: true, Message: "No tokens for uid", TokensFound: 0})
		return
	}
	if len(tokens) > push.MaxTokensPerSend {
		tokens = tokens[:push.MaxTokensPerSend]
	}

	resp, err := h.provider.SendMulticast(ctx, &push.MulticastMessage{
		Tokens:       tokens,
		Notification: push.Notification{Title: "Protocol — test push", Body: "Test push to " + uid},
		Data:         map[string]string{"test": "1", "uid": uid},
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(TestPushResponse{OK: false, Error: err.Error()})
		return
	}

	h.audit.RecordDelivery(ctx, uid, map[string]any{
		"note":          "test-push",
		"tokens_sent":   len(tokens),
		"success_count": resp.SuccessCount,
		"failure_count": resp.FailureCount,
	})

	// Same cleanup rule as the fan-out path: permanent failure, token gone.
	removed := []string{}
	for i, result := range resp.Responses {
		if i >= len(tokens) {
			break
		}
		if !result.Success && push.IsPermanentFailure(result.ErrorCode) {
			if err := h.tokens.RemoveToken(ctx, uid, tokens[i]); err == nil {
				removed = append(removed, tokens[i])
			}
		}
	}

	_ = json.NewEncoder(w).Encode(TestPushResponse{
		OK:            true,
		TokensFound:   len(tokens),
		TokensSent:    len(tokens),
		RemovedTokens: removed,
		Results:       resp.Responses,
	})
}
