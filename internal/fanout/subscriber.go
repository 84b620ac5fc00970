package fanout

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Subscriber consumes new-message events from Redis Pub/Sub and fires one
// engine invocation per event. Delivery here is at-least-once: the engine's
// side effects are idempotent or additive-only, so a redelivered event is
// harmless.
type Subscriber struct {
	rdb     *redis.Client
	engine  *Engine
	channel string

	wg sync.WaitGroup
}

func NewSubscriber(rdb *redis.Client, engine *Engine, channel string) *Subscriber {
	return &Subscriber{rdb: rdb, engine: engine, channel: channel}
}

// Run blocks consuming events until ctx is cancelled, reconnecting with
// capped exponential backoff on subscription errors. In-flight invocations
// are waited for on shutdown so cleanup tasks are not silently dropped.
func (s *Subscriber) Run(ctx context.Context) {
	defer s.wg.Wait()

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := s.rdb.Subscribe(ctx, s.channel)
			defer pubsub.Close()

			log.Printf("✅ Fan-out subscriber started (channel: %s)", s.channel)

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("Redis subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var evt MessageEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					log.Printf("failed to unmarshal message event: %v", err)
					continue
				}
				if evt.ConversationID == "" || evt.MessageID == "" {
					log.Printf("dropping message event with missing ids: %q", msg.Payload)
					continue
				}

				// Fire-and-forget per event; the engine never errors back.
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.engine.HandleMessage(context.WithoutCancel(ctx), evt)
				}()
			}
		}()
	}
}
