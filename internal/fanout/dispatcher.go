package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/protocol-chat/notify-backend/internal/push"
)

const (
	// MaxBodyRunes bounds the notification body shown on the lock screen.
	MaxBodyRunes = 120
	// FallbackBody is used when a message has no text (e.g. attachments only).
	FallbackBody = "New message"
	// FallbackSender is used when the sender's display name is unknown.
	FallbackSender = "Someone"
)

// Attempt is the per-token outcome of one dispatch, tagged with the token's
// owner so cleanup and per-user audit know whose registration it was.
type Attempt struct {
	Token     string
	OwnerID   string
	Success   bool
	ErrorCode string
}

// ChunkError describes one failed provider call. A chunk-level failure is
// non-fatal to the other chunks.
type ChunkError struct {
	Index      int
	TokenCount int
	Err        error
}

// Dispatcher partitions the deduplicated token set into provider-sized
// chunks and issues one multicast call per chunk. Chunks are independent
// units of work: one transient provider failure loses at most one chunk.
type Dispatcher struct {
	provider push.Provider
}

func NewDispatcher(provider push.Provider) *Dispatcher {
	return &Dispatcher{provider: provider}
}

// BuildNotification builds the single payload reused across all chunks.
func BuildNotification(senderName, body string) push.Notification {
	if senderName == "" {
		senderName = FallbackSender
	}
	if body == "" {
		body = FallbackBody
	} else if runes := []rune(body); len(runes) > MaxBodyRunes {
		body = string(runes[:MaxBodyRunes]) + "…"
	}
	return push.Notification{Title: senderName, Body: body}
}

// Dispatch sends the notification to every token, at most
// push.MaxTokensPerSend per provider call. Chunks are sent concurrently;
// results come back in token order, each tagged with its owner. An empty
// token set returns immediately without touching the provider.
func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string, owner map[string]string, notification push.Notification, data map[string]string) ([]Attempt, []ChunkError) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var chunks [][]string
	for start := 0; start < len(tokens); start += push.MaxTokensPerSend {
		end := start + push.MaxTokensPerSend
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[start:end])
	}

	perChunk := make([][]Attempt, len(chunks))
	var (
		mu     sync.Mutex
		errors []ChunkError
		wg     sync.WaitGroup
	)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := d.provider.SendMulticast(ctx, &push.MulticastMessage{
				Tokens:       chunk,
				Notification: notification,
				Data:         data,
			})
			if err == nil && len(resp.Responses) != len(chunk) {
				err = fmt.Errorf("provider returned %d results for %d tokens", len(resp.Responses), len(chunk))
			}
			if err != nil {
				mu.Lock()
				errors = append(errors, ChunkError{Index: i, TokenCount: len(chunk), Err: err})
				mu.Unlock()
				return
			}

			attempts := make([]Attempt, len(chunk))
			for j, token := range chunk {
				attempts[j] = Attempt{
					Token:   token,
					OwnerID: owner[token],
					Success: resp.Responses[j].Success,
				}
				if !resp.Responses[j].Success {
					attempts[j].ErrorCode = resp.Responses[j].ErrorCode
				}
			}
			perChunk[i] = attempts
		}()
	}
	wg.Wait()

	var all []Attempt
	for _, attempts := range perChunk {
		all = append(all, attempts...)
	}
	return all, errors
}
