package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"klasquiz-service/internal/app"
	"klasquiz-service/internal/auth"
	"klasquiz-service/internal/config"
	"klasquiz-service/internal/infra/memory"
	"klasquiz-service/internal/infra/postgres"
	redisinfra "klasquiz-service/internal/infra/redis"
	transport "klasquiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var store app.Store = memory.NewStore()
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store = postgres.NewStore(db, pool)
	} else {
		log.Printf("no postgres url configured, using in-memory store")
	}

	answersTTL := config.TTLDuration(cfg.Answers.TTL, 10*time.Minute)
	var answers app.AnswerKey
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		answers = redisinfra.NewAnswerCache(redisClient, store, answersTTL)
	} else {
		answers = memory.NewAnswerCache(store, answersTTL)
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = "geheim"
		log.Printf("auth secret not configured, using development default")
	}
	tokens := auth.NewManager(secret, config.TTLDuration(cfg.Auth.TTL, 24*time.Hour))

	hub := app.NewHub()
	presence := app.NewPresenceTracker(config.TTLDuration(cfg.Presence.StaleAfter, 2*time.Minute))
	sessions := app.NewSessionService(store, answers, hub, presence)
	catalog := app.NewCatalogService(store, answers)

	srv := transport.NewServer(sessions, catalog, store, tokens)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting klasquiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
