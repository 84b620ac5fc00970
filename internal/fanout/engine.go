package fanout

import (
	"context"
	"log"

	"github.com/protocol-chat/notify-backend/internal/models"
	"github.com/protocol-chat/notify-backend/internal/store"
)

// ConversationSource reads conversation and message documents.
type ConversationSource interface {
	Get(ctx context.Context, conversationID string) (*models.Conversation, error)
	GetMessage(ctx context.Context, conversationID, messageID string) (*models.Message, error)
}

// Auditor records the append-only trail of a fan-out invocation. Both
// methods are best-effort and must never fail the caller.
type Auditor interface {
	Record(ctx context.Context, entry store.AuditEntry)
	RecordDelivery(ctx context.Context, userID string, payload map[string]any)
}

// Stages of one invocation, in order. Any stage may short-circuit to a
// terminal entry; the engine still returns normally to the trigger source.
const (
	StageStarted        = "started"
	StageResolved       = "participants-resolved"
	StageFiltered       = "presence-filtered"
	StageCollected      = "tokens-collected"
	StagePreDispatch    = "about-to-send"
	StageDispatched     = "send-completed"
	StageCleaned        = "cleaned"
	StageSkipped        = "skipped"
	StageFailed         = "failed"
	NoteNoConversation  = "no-conversation-record"
	NoteUnexpectedShape = "participants-unexpected-shape"
	NoteNoParticipants  = "no-participants"
	NoteNoRecipients    = "no-recipients"
	NoteNoTokens        = "no-tokens"
	NoteSendFailed      = "send-failed"
	TokensPreviewMax    = 20
)

// MessageEvent is the trigger: fired at least once per newly created
// message. Sender fields are optional; when absent the engine loads the
// message record to fill them.
type MessageEvent struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Body           string `json:"body,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`
	SenderUsername string `json:"sender_username,omitempty"`
}

// Engine is the notification fan-out pipeline. One HandleMessage call per
// triggering event; calls for different events may run concurrently, with
// all shared state living in the external stores.
type Engine struct {
	conversations ConversationSource
	profiles      ProfileSource
	filter        *PresenceFilter
	collector     *Collector
	dispatcher    *Dispatcher
	results       *ResultProcessor
	audit         Auditor
}

func NewEngine(
	conversations ConversationSource,
	profiles ProfileSource,
	filter *PresenceFilter,
	collector *Collector,
	dispatcher *Dispatcher,
	results *ResultProcessor,
	audit Auditor,
) *Engine {
	return &Engine{
		conversations: conversations,
		profiles:      profiles,
		filter:        filter,
		collector:     collector,
		dispatcher:    dispatcher,
		results:       results,
		audit:         audit,
	}
}

// HandleMessage runs the full fan-out for one new-message event. It never
// returns an error: surfacing one would make the event source retry and
// duplicate notifications, which no recipient wants. Failures are visible
// only through the audit trail.
func (e *Engine) HandleMessage(ctx context.Context, evt MessageEvent) {
	entry := store.AuditEntry{
		ConversationID: evt.ConversationID,
		MessageID:      evt.MessageID,
	}

	record := func(stage, note, errText string, counts map[string]int, extra map[string]any) {
		rec := entry
		rec.Stage = stage
		rec.Note = note
		rec.Error = errText
		rec.Counts = counts
		rec.Extra = extra
		e.audit.Record(ctx, rec)
	}

	record(StageStarted, "", "", nil, nil)

	// Resolution
	conv, err := e.conversations.Get(ctx, evt.ConversationID)
	if err != nil {
		record(StageFailed, "", err.Error(), nil, nil)
		return
	}
	if conv == nil {
		record(StageFailed, NoteNoConversation, "", nil, nil)
		return
	}

	senderID, senderName, body := e.messageDetails(ctx, evt)

	members, unexpected := NormalizeParticipants(conv)
	note := ""
	if unexpected {
		note = NoteUnexpectedShape
	}
	record(StageResolved, note, "", map[string]int{"participants": len(members)}, map[string]any{"participants": members})
	if len(members) == 0 {
		record(StageSkipped, NoteNoParticipants, "", nil, nil)
		return
	}

	// Presence filter
	eligible, skipped := e.filter.Filter(ctx, members, senderID, evt.ConversationID)
	record(StageFiltered, "", "", map[string]int{
		"eligible": len(eligible),
		"skipped":  len(skipped),
	}, map[string]any{"skipped": skipped})
	if len(eligible) == 0 {
		record(StageSkipped, NoteNoRecipients, "", nil, nil)
		return
	}

	// Token collection and dedup
	coll := e.collector.Collect(ctx, eligible)
	unique := Dedupe(coll.Tokens)
	record(StageCollected, "", "", map[string]int{
		"collected": len(coll.Tokens),
		"unique":    len(unique),
	}, nil)
	if len(unique) == 0 {
		record(StageSkipped, NoteNoTokens, "", nil, nil)
		return
	}

	preview := unique
	if len(preview) > TokensPreviewMax {
		preview = preview[:TokensPreviewMax]
	}
	record(StagePreDispatch, "", "", map[string]int{"tokens": len(unique)}, map[string]any{"tokens_preview": preview})

	// Dispatch
	notification := BuildNotification(senderName, body)
	data := map[string]string{
		"conversation_id":   evt.ConversationID,
		"message_id":        evt.MessageID,
		"sender_id":         senderID,
		"conversation_name": conv.Name,
		"click_target":      "/",
	}
	attempts, chunkErrs := e.dispatcher.Dispatch(ctx, unique, coll.Owner, notification, data)
	for _, ce := range chunkErrs {
		record(StageDispatched, NoteSendFailed, ce.Err.Error(), map[string]int{"chunk_tokens": ce.TokenCount}, nil)
	}

	success, failure := 0, 0
	for _, att := range attempts {
		if att.Success {
			success++
		} else {
			failure++
		}
	}
	record(StageDispatched, "", "", map[string]int{
		"success": success,
		"failure": failure,
	}, nil)

	// Cleanup
	removed := e.results.Process(ctx, evt.ConversationID, evt.MessageID, attempts)
	record(StageCleaned, "", "", map[string]int{"removed_tokens": len(removed)}, nil)
}

// messageDetails fills the sender and body from the trigger event, falling
// back to the stored message, then the sender's profile.
func (e *Engine) messageDetails(ctx context.Context, evt MessageEvent) (senderID, senderName, body string) {
	senderID = evt.SenderID
	senderName = evt.SenderUsername
	body = evt.Body

	if senderID == "" || senderName == "" || body == "" {
		msg, err := e.conversations.GetMessage(ctx, evt.ConversationID, evt.MessageID)
		if err != nil {
			log.Printf("fanout: failed to load message %s: %v", evt.MessageID, err)
		} else if msg != nil {
			if senderID == "" {
				senderID = msg.SenderID
			}
			if senderName == "" {
				senderName = msg.SenderUsername
			}
			if body == "" {
				body = msg.Body
			}
		}
	}

	if senderName == "" && senderID != "" {
		if profile, err := e.profiles.Get(ctx, senderID); err == nil && profile != nil {
			senderName = profile.Username
		}
	}
	return senderID, senderName, body
}
