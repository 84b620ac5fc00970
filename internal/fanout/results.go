package fanout

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/protocol-chat/notify-backend/internal/push"
)

// Removal identifies one pruned registration.
type Removal struct {
	UserID string
	Token  string
}

// ResultProcessor inspects per-token delivery outcomes, records each one to
// the owner's delivery log, and prunes tokens whose failure is permanent.
// Removals are independent and best-effort: one failed removal is logged
// and does not affect the others.
type ResultProcessor struct {
	tokens TokenSource
	audit  Auditor
	limit  int
}

func NewResultProcessor(tokens TokenSource, audit Auditor, limit int) *ResultProcessor {
	if limit <= 0 {
		limit = 8
	}
	return &ResultProcessor{tokens: tokens, audit: audit, limit: limit}
}

// Process records every attempt and removes permanently-failed tokens from
// their owners' sets. Returns the removals that succeeded. Removing a token
// that is already gone is a no-op at the store level, so a retried event
// converges to the same state.
func (p *ResultProcessor) Process(ctx context.Context, conversationID, messageID string, attempts []Attempt) []Removal {
	var toRemove []Removal
	for _, att := range attempts {
		if att.OwnerID != "" {
			p.audit.RecordDelivery(ctx, att.OwnerID, map[string]any{
				"token":           att.Token,
				"success":         att.Success,
				"error_code":      att.ErrorCode,
				"conversation_id": conversationID,
				"message_id":      messageID,
			})
		}
		if att.Success || att.OwnerID == "" {
			continue
		}
		if push.IsPermanentFailure(att.ErrorCode) {
			toRemove = append(toRemove, Removal{UserID: att.OwnerID, Token: att.Token})
		} else if att.ErrorCode != "" {
			log.Printf("fanout: transient delivery failure for user %s: %s", att.OwnerID, att.ErrorCode)
		}
	}

	var (
		mu      sync.Mutex
		removed []Removal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for _, rm := range toRemove {
		rm := rm
		g.Go(func() error {
			if err := p.tokens.RemoveToken(gctx, rm.UserID, rm.Token); err != nil {
				log.Printf("fanout: failed to remove invalid token for user %s: %v", rm.UserID, err)
				return nil
			}
			p.audit.RecordDelivery(gctx, rm.UserID, map[string]any{
				"removed_token": rm.Token,
				"note":          "token-removed-by-server",
			})
			mu.Lock()
			removed = append(removed, rm)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return removed
}
