package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-rank-service/internal/app"
	"quiz-rank-service/internal/config"
	"quiz-rank-service/internal/domain"
	"quiz-rank-service/internal/infra/memory"
	pgstore "quiz-rank-service/internal/infra/postgres"
	redisinfra "quiz-rank-service/internal/infra/redis"
	transport "quiz-rank-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the leaderboard server",
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	service := buildService(cfg, redisClient, pool)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting rank service on :%s", finalPort)
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

// buildService wires stores, cache and notifier from whatever backends are
// configured; without Redis or Postgres it degrades to in-memory demo mode.
func buildService(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool) *app.LeaderboardService {
	cacheTTL := config.TTLDuration(cfg.Leaderboard.CacheTTL, 3*time.Minute)

	var cache app.SnapshotCache
	var notifier app.Notifier
	if redisClient != nil {
		cache = redisinfra.NewSnapshotCache(redisClient, cacheTTL)
		notifier = redisinfra.NewNotifier(redisClient)
	} else {
		cache = memory.NewSnapshotCache(cacheTTL)
		notifier = memory.NewNotifier()
	}

	var snapshots app.SnapshotStore
	var activity app.ActivityStore
	if pool != nil {
		snapshots = pgstore.NewSnapshotStore(pool)
		activity = pgstore.NewActivityStore(pool)
	} else {
		snapshots = memory.NewSnapshotStore()
		activity = memory.NewStaticActivityStore(sampleGroups())
	}

	return app.NewLeaderboardService(snapshots, cache, app.NewAggregator(activity), notifier, app.Options{
		FetchTimeout:  config.TTLDuration(cfg.Leaderboard.FetchTimeout, 10*time.Second),
		RetryAttempts: cfg.Leaderboard.RetryAttempts,
		SelfHeal:      cfg.SelfHeal(),
	})
}

// sampleGroups seeds a small demo group; swap in the Postgres stores for production.
func sampleGroups() map[string]memory.GroupSeed {
	return map[string]memory.GroupSeed{
		"class-1": {
			Members: []domain.Member{
				{ID: "t1", GroupID: "class-1", Role: domain.RoleOfficial, DisplayName: "Ms. Park"},
				{ID: "u1", GroupID: "class-1", Team: "A", DisplayName: "Alice", Exp: 120},
				{ID: "u2", GroupID: "class-1", Team: "B", DisplayName: "Bob", Exp: 80},
			},
			Content: []domain.ContentItem{
				{ID: "set-1", GroupID: "class-1", AuthorID: "t1", QuestionCount: 5},
			},
			Attempts: []domain.AttemptRecord{
				{MemberID: "u1", ContentID: "set-1", AuthorID: "t1", CorrectCount: 4, AttemptCount: 5},
				{MemberID: "u2", ContentID: "set-1", AuthorID: "t1", CorrectCount: 3, AttemptCount: 5},
			},
			Teams: []string{"A", "B"},
		},
	}
}
