package fanout

import (
	"context"
	"log"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// TokenSource reads and prunes a user's registered push tokens.
type TokenSource interface {
	Tokens(ctx context.Context, userID string) ([]string, error)
	RemoveToken(ctx context.Context, userID, token string) error
}

// Collection is the gathered dispatch input: the token sequence in member
// order and each token's owner. The same physical device can appear twice
// when a user carries stale duplicate registrations; the first-seen owner
// wins on duplicates.
type Collection struct {
	Tokens []string
	Owner  map[string]string
}

// Collector gathers push tokens for the eligible members.
type Collector struct {
	tokens TokenSource
	limit  int
}

func NewCollector(tokens TokenSource, limit int) *Collector {
	if limit <= 0 {
		limit = 8
	}
	return &Collector{tokens: tokens, limit: limit}
}

// Collect reads every member's token set, bounded-concurrently, and folds
// the results in member order. A member with zero tokens contributes
// nothing; a failed read for one member is logged and skips only that
// member.
func (c *Collector) Collect(ctx context.Context, members []string) *Collection {
	perMember := make([][]string, len(members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	for i, id := range members {
		i, id := i, id
		g.Go(func() error {
			tokens, err := c.tokens.Tokens(gctx, id)
			if err != nil {
				log.Printf("fanout: failed to read tokens for user %s: %v", id, err)
				return nil
			}
			perMember[i] = tokens
			return nil
		})
	}
	_ = g.Wait()

	coll := &Collection{Owner: make(map[string]string)}
	for i, id := range members {
		for _, token := range perMember[i] {
			if token == "" {
				continue
			}
			coll.Tokens = append(coll.Tokens, token)
			if _, ok := coll.Owner[token]; !ok {
				coll.Owner[token] = id
			}
		}
	}
	return coll
}

// Dedupe collapses duplicate tokens while preserving first-seen order.
// Sending the same token twice in one provider call wastes quota and
// confuses the audit trail.
func Dedupe(tokens []string) []string {
	return lo.Uniq(tokens)
}
