package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/atlekbai/query_engine/internal/auth"
	"github.com/atlekbai/query_engine/internal/config"
	"github.com/atlekbai/query_engine/internal/db"
	"github.com/atlekbai/query_engine/internal/handler"
	"github.com/atlekbai/query_engine/internal/middleware"
	"github.com/atlekbai/query_engine/internal/query"
	"github.com/atlekbai/query_engine/internal/schema"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	cache := schema.NewCache()
	if err := cache.Load(ctx, pool); err != nil {
		log.Fatalf("failed to load schema cache: %v", err)
	}
	log.Printf("schema cache loaded: %d entities", cache.EntityCount())

	transformer := query.NewTransformer(db.NewStore(pool), query.Options{
		OwnerColumn:    cfg.OwnerColumn,
		DefaultPerPage: cfg.DefaultPerPage,
	})

	h := handler.New(cache, transformer)

	router := mux.NewRouter()
	router.HandleFunc("/api/{entity}", h.List).Methods(http.MethodGet)
	router.Use(
		middleware.Recovery,
		middleware.Logging,
		middleware.ContentType,
		auth.Middleware([]byte(cfg.JWTSecret)),
	)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		log.Println("shutting down...")
		srv.Shutdown(context.Background())
	}()

	log.Printf("listening on %s", cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}
