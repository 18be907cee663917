package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/collabry/backend/internal/assistant"
	"github.com/collabry/backend/internal/config"
	"github.com/collabry/backend/internal/database"
	postgresrepo "github.com/collabry/backend/internal/repository/postgres"
	"github.com/collabry/backend/internal/service"
	"github.com/collabry/backend/internal/transport/http/handlers"
	"github.com/collabry/backend/internal/transport/http/middleware"
	"github.com/collabry/backend/internal/transport/ws"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment")
	}
	cfg := config.Load()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	if err := database.Migrate(context.Background(), pool); err != nil {
		log.Fatal(err)
	}
	log.Println("Connected to database")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	convRepo := postgresrepo.NewConversationRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)

	// Real-time fanout
	hub := ws.NewHub()
	go hub.Run()

	var bridge *ws.Bridge
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect Redis: %v", err)
		}
		bridge = ws.NewBridge(hub, rdb)
		go bridge.Run(context.Background())
		log.Println("Redis fanout bridge enabled")
	}
	notifier := ws.NewHubNotifier(hub, bridge)

	// Assistant oracle
	oracle := assistant.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout)
	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := oracle.Healthy(probeCtx); err != nil {
		log.Printf("WARNING assistant oracle probe failed: %v", err)
	}
	cancel()

	// Services
	chatService := service.NewChatService(convRepo, messageRepo, userRepo)
	chatService.SetNotifier(notifier)
	assistantService := service.NewAssistantService(chatService, userRepo, messageRepo, oracle, cfg.AssistantUsername)

	// Handlers
	chatHandler := handlers.NewChatHandler(chatService)
	assistantHandler := handlers.NewAssistantHandler(assistantService)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.JWTSecret))

	// Protected - Conversations
	mux.Handle("POST /api/v1/conversations", auth(http.HandlerFunc(chatHandler.ResolveConversation)))
	mux.Handle("GET /api/v1/conversations", auth(http.HandlerFunc(chatHandler.ListConversations)))
	mux.Handle("GET /api/v1/conversations/{id}", auth(http.HandlerFunc(chatHandler.GetConversation)))
	mux.Handle("PUT /api/v1/conversations/{id}/archive", auth(http.HandlerFunc(chatHandler.Archive)))
	mux.Handle("PUT /api/v1/conversations/{id}/read", auth(http.HandlerFunc(chatHandler.MarkRead)))
	mux.Handle("DELETE /api/v1/conversations/{id}", auth(http.HandlerFunc(chatHandler.Delete)))

	// Protected - Messages
	mux.Handle("POST /api/v1/messages", auth(http.HandlerFunc(chatHandler.SendMessage)))

	// Protected - Assistant
	mux.Handle("POST /api/v1/ai-chat/send", auth(http.HandlerFunc(assistantHandler.Send)))

	// Start server with CORS
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("Starting server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, middleware.CORS(mux)))
}
