package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/protocol-chat/notify-backend/internal/config"
	"github.com/protocol-chat/notify-backend/internal/database"
	"github.com/protocol-chat/notify-backend/internal/fanout"
	"github.com/protocol-chat/notify-backend/internal/handlers"
	"github.com/protocol-chat/notify-backend/internal/middleware"
	"github.com/protocol-chat/notify-backend/internal/push"
	"github.com/protocol-chat/notify-backend/internal/routes"
	"github.com/protocol-chat/notify-backend/internal/store"
)

// EngineName keys the audit trail in Redis; changing it orphans old entries.
const EngineName = "sendMessageNotifications"

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	// Load configuration
	cfg := config.Load()

	// Production: an unauthenticated provider is a misconfiguration, refuse to start.
	// Non-production: warn and carry on against a local provider stub.
	if cfg.PushServerKey == "" {
		if cfg.IsProduction() {
			log.Fatal("PUSH_SERVER_KEY is required in production")
		}
		log.Println("⚠️  WARNING: PUSH_SERVER_KEY not set. Provider calls will be unauthenticated.")
	}

	// Connect to Redis (tokens, presence, audit trail, trigger channel)
	log.Printf("Connecting to Redis...")
	rdb, err := database.ConnectRedis(cfg.RedisURI)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Connect to PostgreSQL (user profiles)
	log.Printf("Connecting to PostgreSQL...")
	pg, err := database.ConnectPostgres(cfg.PostgresURI)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer pg.Close()

	// Connect to MongoDB (conversations and messages, read-only here)
	log.Printf("Connecting to MongoDB...")
	mongoDB, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect(mongoDB)

	// Stores
	endpoints := store.NewEndpointStore(rdb)
	conversations := store.NewConversationStore(mongoDB)
	profiles := store.NewProfileStore(pg)
	audit := store.NewAuditLog(rdb, EngineName)

	// Push provider
	provider := push.NewHTTPProvider(cfg.PushProviderURL, cfg.PushServerKey)

	// Fan-out engine
	engine := fanout.NewEngine(
		conversations,
		profiles,
		fanout.NewPresenceFilter(endpoints, profiles, cfg.ReadConcurrency),
		fanout.NewCollector(endpoints, cfg.ReadConcurrency),
		fanout.NewDispatcher(provider),
		fanout.NewResultProcessor(endpoints, audit, cfg.ReadConcurrency),
		audit,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Trigger subscriber: one fan-out invocation per new-message event
	subscriber := fanout.NewSubscriber(rdb, engine, cfg.MessageChannel)
	subscriberDone := make(chan struct{})
	go func() {
		defer close(subscriberDone)
		subscriber.Run(ctx)
	}()

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check (no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Setup routes
	routes.SetupRoutes(r, routes.Handlers{
		Registrar: handlers.NewRegistrar(endpoints),
		Presence:  handlers.NewPresenceGateway(endpoints),
		Tester:    handlers.NewPushTester(endpoints, provider, audit),
	}, middleware.RateLimit(rdb))

	log.Println("📋 Registered routes:")
	log.Println("  GET  /health")
	log.Println("  POST /api/push/register")
	log.Println("  POST /api/push/unregister")
	log.Println("  GET  /api/push/test")
	log.Println("  POST /api/push/test")
	log.Println("  GET  /ws/presence")

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		<-ctx.Done()
		// Restore default signal handling so a second SIGINT/SIGTERM kills
		// the process instead of being swallowed.
		stop()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Protocol notify backend running on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Failed to start server:", err)
	}

	// Wait for in-flight fan-out invocations to drain.
	<-subscriberDone
	log.Println("Shutdown complete")
}
