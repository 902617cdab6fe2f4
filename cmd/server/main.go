package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"ledgerline-backend/internal/auth"
	"ledgerline-backend/internal/handlers"
	"ledgerline-backend/internal/natsbus"
	"ledgerline-backend/internal/rpc"
	"ledgerline-backend/internal/services"
	"ledgerline-backend/internal/session"
	"ledgerline-backend/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN Could not load .env file: %v", err)
	}

	if os.Getenv("SERVICE_JWT_SECRET") == "" {
		log.Fatal("SERVICE_JWT_SECRET is required")
	}

	// Database connection (with retries)
	var db *sqlx.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("postgres", buildDSN())
		if err == nil {
			break
		}
		log.Printf("DB connection attempt %d failed: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	// NATS connection
	natsClient, err := natsbus.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session store: Redis when configured, in-memory otherwise
	sessions, err := buildSessionStore(ctx)
	if err != nil {
		log.Fatalf("Failed to build session store: %v", err)
	}

	// Storage
	store := storage.NewStorage(db)

	// Hosted function clients
	classifier := services.NewClassifierClient(auth.GenerateServiceToken)
	insights := services.NewInsightsClient(auth.GenerateServiceToken)
	reports := rpc.NewClient(natsClient.NC())

	// HTTP handlers
	authHandler := auth.NewHandler(store, sessions)
	h := handlers.New(store, classifier, insights, reports)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.Get("/swagger/*", httpSwagger.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(sessions))
		r.Post("/logout", authHandler.Logout)
		r.Get("/auth/current", authHandler.Current)
		h.RegisterRoutes(r)
	})

	server := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on %s", server.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

// buildSessionStore prefers Redis so sessions survive restarts; the in-memory
// store is for local development without a Redis instance.
func buildSessionStore(ctx context.Context) (session.Store, error) {
	if os.Getenv("REDIS_URL") == "" {
		log.Println("WARN REDIS_URL not set; using in-memory session store")
		mem := session.NewMemoryStore(session.TTL)
		mem.StartSweeper(ctx, time.Minute)
		return mem, nil
	}

	rdb, err := session.NewRedisClient()
	if err != nil {
		return nil, err
	}
	log.Println("Connected to Redis")
	return session.NewRedisStore(rdb, session.TTL), nil
}

func buildDSN() string {
	return "host=" + getEnv("DB_HOST", "localhost") +
		" user=" + getEnv("DB_USER", "ledger_user") +
		" password=" + getEnv("DB_PASSWORD", "ledger_pass") +
		" dbname=" + getEnv("DB_NAME", "ledgerline") +
		" sslmode=disable"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
