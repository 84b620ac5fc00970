package fanout

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/protocol-chat/notify-backend/internal/models"
)

// PresenceSource reads a user's self-reported realtime state.
type PresenceSource interface {
	Presence(ctx context.Context, userID string) (models.Presence, error)
}

// ProfileSource reads public user profiles.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
}

// Skip reasons recorded per excluded member.
const (
	SkipSender             = "sender"
	SkipOnline             = "online"
	SkipActiveConversation = "conversation-open"
	SkipNoProfile          = "no-profile"
	SkipReadFailed         = "read-failed"
)

// PresenceFilter removes the sender and every member who would see the
// message live anyway: anyone online or with the conversation open.
// Presence is read once per invocation and treated as a snapshot; a member
// who logs off right after the read may be skipped for this message.
type PresenceFilter struct {
	presence PresenceSource
	profiles ProfileSource
	limit    int
}

func NewPresenceFilter(presence PresenceSource, profiles ProfileSource, limit int) *PresenceFilter {
	if limit <= 0 {
		limit = 8
	}
	return &PresenceFilter{presence: presence, profiles: profiles, limit: limit}
}

// Filter returns the members eligible for delivery, in input order, plus a
// reason per skipped member. Per-member reads run concurrently, bounded so
// a large conversation cannot overwhelm the store. A member whose profile
// cannot be loaded is excluded: no profile means no delivery, recorded as a
// per-participant failure rather than failing the batch.
func (f *PresenceFilter) Filter(ctx context.Context, members []string, senderID, conversationID string) ([]string, map[string]string) {
	skipped := make(map[string]string)

	var candidates []string
	for _, id := range members {
		if id == senderID {
			skipped[id] = SkipSender
			continue
		}
		candidates = append(candidates, id)
	}

	eligible := make([]bool, len(candidates))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.limit)

	for i, id := range candidates {
		i, id := i, id
		g.Go(func() error {
			reason, ok := f.check(gctx, id, conversationID)
			if ok {
				eligible[i] = true
				return nil
			}
			mu.Lock()
			skipped[id] = reason
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // goroutines never return an error; exclusion is per-member

	var out []string
	for i, id := range candidates {
		if eligible[i] {
			out = append(out, id)
		}
	}
	return out, skipped
}

// check decides one member's eligibility. The profile and presence reads
// are independent and issued concurrently.
func (f *PresenceFilter) check(ctx context.Context, userID, conversationID string) (reason string, ok bool) {
	var (
		profile    *models.Profile
		profileErr error
		presence   models.Presence
		presErr    error
		wg         sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		profile, profileErr = f.profiles.Get(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		presence, presErr = f.presence.Presence(ctx, userID)
	}()
	wg.Wait()

	if profileErr != nil || presErr != nil {
		return SkipReadFailed, false
	}
	if profile == nil || !profile.IsActive {
		return SkipNoProfile, false
	}
	if presence.Online {
		return SkipOnline, false
	}
	if presence.ActiveConversationID != "" && presence.ActiveConversationID == conversationID {
		return SkipActiveConversation, false
	}
	return "", true
}
