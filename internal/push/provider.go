package push

import "context"

// MaxTokensPerSend is the provider's documented multicast ceiling.
// A single send call must never carry more tokens than this.
const MaxTokensPerSend = 500

// Notification is the user-visible part of a push payload.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// MulticastMessage is one provider call: a single payload delivered to many
// device tokens at once.
type MulticastMessage struct {
	Tokens       []string          `json:"tokens"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

// SendResult is the outcome for a single token within a multicast call.
type SendResult struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code,omitempty"`
}

// BatchResponse summarizes one multicast call. Responses is aligned
// positionally with the request's token order.
type BatchResponse struct {
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	Responses    []SendResult `json:"responses"`
}

// Provider delivers one multicast push. Implementations must respect
// MaxTokensPerSend; callers are responsible for chunking.
type Provider interface {
	SendMulticast(ctx context.Context, msg *MulticastMessage) (*BatchResponse, error)
}
