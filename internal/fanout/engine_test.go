package fanout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocol-chat/notify-backend/internal/models"
	"github.com/protocol-chat/notify-backend/internal/push"
)

type engineFixture struct {
	engine   *Engine
	provider *fakeProvider
	tokens   *fakeTokens
	audit    *fakeAudit
}

func newEngineFixture(conv *models.Conversation, presence map[string]models.Presence, tokens map[string][]string, profileIDs ...string) *engineFixture {
	provider := &fakeProvider{}
	tokenStore := &fakeTokens{tokens: tokens}
	audit := newFakeAudit()
	profiles := &fakeProfiles{profiles: activeProfiles(profileIDs...)}

	engine := NewEngine(
		&fakeConversations{conv: conv},
		profiles,
		NewPresenceFilter(&fakePresence{presence: presence}, profiles, 4),
		NewCollector(tokenStore, 4),
		NewDispatcher(provider),
		NewResultProcessor(tokenStore, audit, 4),
		audit,
	)
	return &engineFixture{engine: engine, provider: provider, tokens: tokenStore, audit: audit}
}

func TestEngine_MissingConversationSkipsDispatch(t *testing.T) {
	fx := newEngineFixture(nil, nil, nil)

	fx.engine.HandleMessage(context.Background(), MessageEvent{ConversationID: "c1", MessageID: "m1"})

	require.Zero(t, fx.provider.callCount())
	require.True(t, fx.audit.hasNote(NoteNoConversation))
}

func TestEngine_AllMembersOnlineMeansNoProviderCall(t *testing.T) {
	conv := &models.Conversation{ID: "c1", Participants: []interface{}{"alice", "bob", "carol"}}
	fx := newEngineFixture(conv,
		map[string]models.Presence{
			"bob":   {Online: true},
			"carol": {Online: true},
		},
		map[string][]string{"bob": {"t1"}, "carol": {"t2"}},
		"alice", "bob", "carol",
	)

	fx.engine.HandleMessage(context.Background(), MessageEvent{
		ConversationID: "c1", MessageID: "m1", SenderID: "alice", SenderUsername: "alice", Body: "hi",
	})

	require.Zero(t, fx.provider.callCount())
	require.True(t, fx.audit.hasNote(NoteNoRecipients))
}

func TestEngine_SenderEndpointsNeverDispatched(t *testing.T) {
	conv := &models.Conversation{ID: "c1", Participants: []interface{}{"alice", "bob"}}
	fx := newEngineFixture(conv,
		map[string]models.Presence{},
		map[string][]string{"alice": {"ta"}, "bob": {"tb"}},
		"alice", "bob",
	)

	fx.engine.HandleMessage(context.Background(), MessageEvent{
		ConversationID: "c1", MessageID: "m1", SenderID: "alice", SenderUsername: "alice", Body: "hi",
	})

	require.Equal(t, []string{"tb"}, fx.provider.sentTokens())
}

func TestEngine_OnlineMemberSkippedAndDuplicatesCollapsed(t *testing.T) {
	// Conversation c1: members {alice, bob, carol}; alice sends, bob is
	// online, carol has the same token registered twice.
	conv := &models.Conversation{ID: "c1", Participants: []interface{}{"alice", "bob", "carol"}}
	fx := newEngineFixture(conv,
		map[string]models.Presence{"bob": {Online: true}},
		map[string][]string{
			"bob":   {"tb"},
			"carol": {"t1", "t1"},
		},
		"alice", "bob", "carol",
	)

	fx.engine.HandleMessage(context.Background(), MessageEvent{
		ConversationID: "c1", MessageID: "m1", SenderID: "alice", SenderUsername: "alice", Body: "hi",
	})

	require.Equal(t, 1, fx.provider.callCount())
	require.Equal(t, []string{"t1"}, fx.provider.sentTokens())
	require.Len(t, fx.audit.deliveries["carol"], 1)
	require.Empty(t, fx.audit.deliveries["bob"])
}

func TestEngine_PermanentFailurePrunesTokenAndRetryIsHarmless(t *testing.T) {
	conv := &models.Conversation{ID: "c1", Participants: []interface{}{"alice", "carol"}}
	fx := newEngineFixture(conv,
		map[string]models.Presence{},
		map[string][]string{"carol": {"t1"}},
		"alice", "carol",
	)
	fx.provider.respond = func(msg *push.MulticastMessage) (*push.BatchResponse, error) {
		resp := &push.BatchResponse{Responses: make([]push.SendResult, len(msg.Tokens))}
		for i := range resp.Responses {
			resp.Responses[i] = push.SendResult{Success: false, ErrorCode: "registration-token-not-registered"}
		}
		resp.FailureCount = len(msg.Tokens)
		return resp, nil
	}

	evt := MessageEvent{ConversationID: "c1", MessageID: "m1", SenderID: "alice", SenderUsername: "alice", Body: "hi"}

	fx.engine.HandleMessage(context.Background(), evt)
	require.Empty(t, fx.tokens.tokens["carol"])

	// The same logical message delivered again: t1 is gone, so the second
	// invocation ends at the no-tokens stage without error.
	fx.engine.HandleMessage(context.Background(), evt)
	require.True(t, fx.audit.hasNote(NoteNoTokens))
	require.Equal(t, 1, fx.provider.callCount())
}

func TestEngine_UnexpectedParticipantShapeIsAuditedNotFatal(t *testing.T) {
	conv := &models.Conversation{ID: "c1", Participants: 42, CreatedBy: "alice"}
	fx := newEngineFixture(conv, nil, nil, "alice")

	fx.engine.HandleMessage(context.Background(), MessageEvent{
		ConversationID: "c1", MessageID: "m1", SenderID: "alice", SenderUsername: "alice", Body: "hi",
	})

	require.True(t, fx.audit.hasNote(NoteUnexpectedShape))
	require.Zero(t, fx.provider.callCount())
}
