package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocol-chat/notify-backend/internal/push"
)

func TestBuildNotification_TruncatesLongBody(t *testing.T) {
	long := strings.Repeat("x", 300)
	n := BuildNotification("alice", long)
	require.Equal(t, "alice", n.Title)
	require.Equal(t, strings.Repeat("x", MaxBodyRunes)+"…", n.Body)
}

func TestBuildNotification_ShortBodyUntouched(t *testing.T) {
	n := BuildNotification("alice", "hello")
	require.Equal(t, "hello", n.Body)
}

func TestBuildNotification_Fallbacks(t *testing.T) {
	n := BuildNotification("", "")
	require.Equal(t, FallbackSender, n.Title)
	require.Equal(t, FallbackBody, n.Body)
}

func TestDispatcher_EmptyTokensNeverCallsProvider(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider)

	attempts, chunkErrs := d.Dispatch(context.Background(), nil, nil, push.Notification{}, nil)
	require.Empty(t, attempts)
	require.Empty(t, chunkErrs)
	require.Zero(t, provider.callCount())
}

func manyTokens(n int) ([]string, map[string]string) {
	tokens := make([]string, n)
	owner := make(map[string]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%04d", i)
		owner[tokens[i]] = "u1"
	}
	return tokens, owner
}

func TestDispatcher_ChunksAtProviderCeiling(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider)

	tokens, owner := manyTokens(1200)
	attempts, chunkErrs := d.Dispatch(context.Background(), tokens, owner, push.Notification{Title: "t"}, nil)
	require.Empty(t, chunkErrs)
	require.Len(t, attempts, 1200)
	require.Equal(t, 3, provider.callCount())

	sizes := make(map[int]int)
	for _, call := range provider.calls {
		require.LessOrEqual(t, len(call.Tokens), push.MaxTokensPerSend)
		sizes[len(call.Tokens)]++
	}
	require.Equal(t, map[int]int{500: 2, 200: 1}, sizes)
}

func TestDispatcher_FiveHundredOneTokensMeansTwoCalls(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider)

	tokens, owner := manyTokens(501)
	_, chunkErrs := d.Dispatch(context.Background(), tokens, owner, push.Notification{Title: "t"}, nil)
	require.Empty(t, chunkErrs)
	require.Equal(t, 2, provider.callCount())
}

func TestDispatcher_ChunkFailureDoesNotAbortOtherChunks(t *testing.T) {
	provider := &fakeProvider{}
	provider.respond = func(msg *push.MulticastMessage) (*push.BatchResponse, error) {
		// Fail the full-sized chunk, succeed on the remainder.
		if len(msg.Tokens) == push.MaxTokensPerSend {
			return nil, errors.New("gateway timeout")
		}
		resp := &push.BatchResponse{Responses: make([]push.SendResult, len(msg.Tokens))}
		for i := range resp.Responses {
			resp.Responses[i].Success = true
		}
		return resp, nil
	}
	d := NewDispatcher(provider)

	tokens, owner := manyTokens(600)
	attempts, chunkErrs := d.Dispatch(context.Background(), tokens, owner, push.Notification{Title: "t"}, nil)
	require.Len(t, chunkErrs, 1)
	require.Equal(t, push.MaxTokensPerSend, chunkErrs[0].TokenCount)
	require.Len(t, attempts, 100)
	require.Equal(t, 2, provider.callCount())
}

func TestDispatcher_TagsAttemptsWithOwner(t *testing.T) {
	provider := &fakeProvider{
		respond: func(msg *push.MulticastMessage) (*push.BatchResponse, error) {
			return &push.BatchResponse{Responses: []push.SendResult{
				{Success: true},
				{Success: false, ErrorCode: "registration-token-not-registered"},
			}}, nil
		},
	}
	d := NewDispatcher(provider)

	owner := map[string]string{"t1": "bob", "t2": "carol"}
	attempts, _ := d.Dispatch(context.Background(), []string{"t1", "t2"}, owner, push.Notification{Title: "t"}, nil)
	require.Len(t, attempts, 2)
	require.Equal(t, Attempt{Token: "t1", OwnerID: "bob", Success: true}, attempts[0])
	require.Equal(t, Attempt{Token: "t2", OwnerID: "carol", Success: false, ErrorCode: "registration-token-not-registered"}, attempts[1])
}
