package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"quiz-rank-service/internal/app"
	"quiz-rank-service/internal/domain"
	pgstore "quiz-rank-service/internal/infra/postgres"
	pgmigrations "quiz-rank-service/internal/infra/postgres/migrations"
	infraredis "quiz-rank-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestFallbackAndSelfHealEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedActivity(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	snapshots := pgstore.NewSnapshotStore(pool)
	cache := infraredis.NewSnapshotCache(redisClient, 2*time.Minute)
	service := app.NewLeaderboardService(
		snapshots,
		cache,
		app.NewAggregator(pgstore.NewActivityStore(pool)),
		infraredis.NewNotifier(redisClient),
		app.Options{SelfHeal: true},
	)

	// No precomputed document exists, so this load runs the fallback path.
	snapshot, err := service.Load(ctx, "class-1", &domain.ViewerState{MemberID: "u1", DisplayName: "Alicia"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snapshot.Members) != 2 {
		t.Fatalf("expected 2 ranked members, got %+v", snapshot.Members)
	}
	if snapshot.Members[0].MemberID != "u1" {
		t.Fatalf("expected u1 leading, got %+v", snapshot.Members[0])
	}
	if idx := snapshot.FindMember("u1"); snapshot.Members[idx].DisplayName != "Alicia" {
		t.Fatalf("viewer overlay missing: %+v", snapshot.Members[idx])
	}

	// Self-heal: the document is now in Postgres under the producer schema.
	healed, err := snapshots.GetSnapshot(ctx, "class-1")
	if err != nil {
		t.Fatalf("expected self-healed document: %v", err)
	}
	if healed.Source != domain.SourceFallback {
		t.Fatalf("expected fallback source, got %q", healed.Source)
	}
	// Stored without the viewer overlay.
	if idx := healed.FindMember("u1"); healed.Members[idx].DisplayName != "Alice" {
		t.Fatalf("overlay leaked into the persisted document: %+v", healed.Members[idx])
	}

	// And the Redis cache answers the next read without touching Postgres.
	cached, fresh, err := cache.Get(ctx, "class-1")
	if err != nil || cached == nil || !fresh {
		t.Fatalf("expected fresh cache entry, got=%v fresh=%v err=%v", cached, fresh, err)
	}
}

func seedActivity(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stmts := []string{
		`INSERT INTO members (id, group_id, team, role, display_name, exp) VALUES
			('t1', 'class-1', '', 'official', 'Ms. Park', 0),
			('u1', 'class-1', 'A', 'regular', 'Alice', 120),
			('u2', 'class-1', 'B', 'regular', 'Bob', 80)`,
		`INSERT INTO content_items (id, group_id, author_id, question_count) VALUES
			('set-1', 'class-1', 't1', 5)`,
		`INSERT INTO attempts (member_id, content_id, author_id, correct_count, attempt_count, is_revision) VALUES
			('u1', 'set-1', 't1', 4, 5, false),
			('u1', 'set-1', 't1', 5, 5, true),
			('u2', 'set-1', 't1', 3, 5, false)`,
		`INSERT INTO teams (group_id, name) VALUES ('class-1', 'A'), ('class-1', 'B')`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "rank", "POSTGRES_PASSWORD": "rankpass", "POSTGRES_DB": "rankdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://rank:rankpass@%s:%s/rankdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
