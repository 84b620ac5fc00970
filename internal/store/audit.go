package store

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// AuditKeyPrefix is the Redis key prefix for the engine's audit trail
	AuditKeyPrefix = "audit:"
	// DeliveryAuditKeyPrefix is the Redis key prefix for per-user delivery logs
	DeliveryAuditKeyPrefix = "user:delivery:"
	// AuditTrailMax bounds the engine-wide audit list
	AuditTrailMax = 2000
	// DeliveryAuditMax bounds each per-user delivery list
	DeliveryAuditMax = 200
)

// AuditEntry is one append-only record of a fan-out stage.
type AuditEntry struct {
	Key            string         `json:"key"`
	TS             int64          `json:"ts"` // unix millis
	Stage          string         `json:"stage"`
	ConversationID string         `json:"conversation_id,omitempty"`
	MessageID      string         `json:"message_id,omitempty"`
	Note           string         `json:"note,omitempty"`
	Error          string         `json:"error,omitempty"`
	Counts         map[string]int `json:"counts,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// AuditLog appends structured stage records to Redis lists, keyed by a fixed
// engine name, with a "last" pointer for quick inspection. Every write is
// best-effort: a failed audit write is logged and swallowed so it can never
// take down the fan-out itself.
type AuditLog struct {
	rdb    *redis.Client
	engine string
}

// NewAuditLog creates an audit log for the named engine
// (e.g. "sendMessageNotifications").
func NewAuditLog(rdb *redis.Client, engine string) *AuditLog {
	return &AuditLog{rdb: rdb, engine: engine}
}

func (a *AuditLog) trailKey() string {
	return AuditKeyPrefix + a.engine + ":log"
}

func (a *AuditLog) lastKey() string {
	return AuditKeyPrefix + a.engine + ":last"
}

// Record appends one entry to the engine's audit trail and updates the
// "last" pointer. Never returns an error.
func (a *AuditLog) Record(ctx context.Context, entry AuditEntry) {
	entry.Key = uuid.New().String()
	entry.TS = time.Now().UnixMilli()

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("audit: failed to marshal entry for stage %s: %v", entry.Stage, err)
		return
	}

	pipe := a.rdb.Pipeline()
	pipe.RPush(ctx, a.trailKey(), data)
	pipe.LTrim(ctx, a.trailKey(), -AuditTrailMax, -1)
	pipe.Set(ctx, a.lastKey(), data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("audit: failed to write entry for stage %s: %v", entry.Stage, err)
	}
}

// RecordDelivery appends a per-user delivery outcome or cleanup action to
// that user's capped delivery log. Never returns an error.
func (a *AuditLog) RecordDelivery(ctx context.Context, userID string, payload map[string]any) {
	payload["ts"] = time.Now().UnixMilli()

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("audit: failed to marshal delivery entry for user %s: %v", userID, err)
		return
	}

	listKey := DeliveryAuditKeyPrefix + userID + ":log"
	lastKey := DeliveryAuditKeyPrefix + userID + ":last"

	pipe := a.rdb.Pipeline()
	pipe.RPush(ctx, listKey, data)
	pipe.LTrim(ctx, listKey, -DeliveryAuditMax, -1)
	pipe.Set(ctx, lastKey, data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("audit: failed to write delivery entry for user %s: %v", userID, err)
	}
}
