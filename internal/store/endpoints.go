package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/protocol-chat/notify-backend/internal/models"
)

const (
	// TokenKeyPrefix is the Redis key prefix for a user's push token set
	TokenKeyPrefix = "user:push:"
	// PresenceKeyPrefix is the Redis key prefix for a user's presence hash
	PresenceKeyPrefix = "presence:"
	// PresenceTTL is how long a presence report stays valid without refresh.
	// Disconnected clients go offline by expiry, not by an explicit write.
	PresenceTTL = 90 * time.Second
)

// EndpointStore persists each user's registered push tokens and ephemeral
// presence state in Redis. Token additions come from the registration path;
// removals come from the fan-out engine when a delivery reports the token
// as permanently invalid.
type EndpointStore struct {
	rdb *redis.Client
}

func NewEndpointStore(rdb *redis.Client) *EndpointStore {
	return &EndpointStore{rdb: rdb}
}

func tokenKey(userID string) string {
	return TokenKeyPrefix + userID + ":tokens"
}

func presenceKey(userID string) string {
	return PresenceKeyPrefix + userID
}

// Tokens returns all push tokens registered for a user. A user with no
// tokens yields an empty slice, not an error.
func (s *EndpointStore) Tokens(ctx context.Context, userID string) ([]string, error) {
	tokens, err := s.rdb.SMembers(ctx, tokenKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// AddToken registers a push token for a user. Re-registering the same token
// is a no-op at the set level.
func (s *EndpointStore) AddToken(ctx context.Context, userID, token string) error {
	return s.rdb.SAdd(ctx, tokenKey(userID), token).Err()
}

// RemoveToken deletes one token from a user's set. Removing an already-absent
// token is a no-op, which keeps cleanup idempotent under event retries.
func (s *EndpointStore) RemoveToken(ctx context.Context, userID, token string) error {
	return s.rdb.SRem(ctx, tokenKey(userID), token).Err()
}

// Presence reads a user's self-reported realtime state. A missing or expired
// presence key means offline.
func (s *EndpointStore) Presence(ctx context.Context, userID string) (models.Presence, error) {
	fields, err := s.rdb.HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil {
		return models.Presence{}, err
	}
	return models.Presence{
		Online:               fields["online"] == "1",
		ActiveConversationID: fields["active_conversation"],
	}, nil
}

// SetOnline marks a user online and refreshes the presence TTL. Called by
// the presence gateway on connect and on every ping.
func (s *EndpointStore) SetOnline(ctx context.Context, userID string) error {
	key := presenceKey(userID)
	if err := s.rdb.HSet(ctx, key, "online", "1").Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, PresenceTTL).Err()
}

// SetActiveConversation records which conversation the user currently has
// open, so new messages there are not pushed redundantly. An empty
// conversation id clears the field.
func (s *EndpointStore) SetActiveConversation(ctx context.Context, userID, conversationID string) error {
	key := presenceKey(userID)
	if conversationID == "" {
		return s.rdb.HDel(ctx, key, "active_conversation").Err()
	}
	if err := s.rdb.HSet(ctx, key, "active_conversation", conversationID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, PresenceTTL).Err()
}

// ClearPresence removes the presence key entirely. Used on clean disconnect;
// unclean disconnects rely on TTL expiry.
func (s *EndpointStore) ClearPresence(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, presenceKey(userID)).Err()
}
