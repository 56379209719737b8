package cli

import (
	"context"
	"fmt"
	"log"

	"quiz-rank-service/internal/app"
	"quiz-rank-service/internal/config"
	pgstore "quiz-rank-service/internal/infra/postgres"
	redisinfra "quiz-rank-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewRebuildCmd forces a fallback aggregation for one group and persists the
// result, for operators repairing a broken or missing leaderboard document.
func NewRebuildCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <group-id>",
		Short: "Recompute and persist one group's leaderboard from raw records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd.Context(), *configPath, args[0])
		},
	}
}

func runRebuild(ctx context.Context, configPath, groupID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	snapshot, err := app.NewAggregator(pgstore.NewActivityStore(pool)).Build(ctx, groupID)
	if err != nil {
		return err
	}
	if err := pgstore.NewSnapshotStore(pool).PutSnapshot(ctx, snapshot); err != nil {
		return err
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := redisinfra.NewNotifier(client).Publish(ctx, groupID); err != nil {
			log.Printf("rebuild: notify %s: %v", groupID, err)
		}
	}

	log.Printf("rebuilt leaderboard for %s: %d members, %d teams", groupID, len(snapshot.Members), len(snapshot.Teams))
	return nil
}
