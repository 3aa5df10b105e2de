package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"klasquiz-service/internal/app"
	"klasquiz-service/internal/domain"
	"klasquiz-service/internal/infra/postgres"
	pgmigrations "klasquiz-service/internal/infra/postgres/migrations"
	infraredis "klasquiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisAddr, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(db, pool)

	redisClient := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	defer redisClient.Close()
	answers := infraredis.NewAnswerCache(redisClient, store, 5*time.Minute)

	service := app.NewSessionService(store, answers, app.NewHub(), app.NewPresenceTracker(time.Minute))

	docentID, err := store.CreateTeacher(ctx, "Jansen", "jansen@school.nl", "hash")
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	if _, err := store.CreateTeacher(ctx, "Dubbel", "jansen@school.nl", "hash"); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("duplicate email: err = %v, want ErrEmailTaken", err)
	}

	klas, err := store.CreateClass(ctx, docentID, "3A", "AB12CD", "aardrijkskunde")
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	fleur, err := store.CreateStudent(ctx, klas.ID, "Fleur")
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	daan, err := store.CreateStudent(ctx, klas.ID, "Daan")
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	lijstID, err := store.CreateQuestionList(ctx, klas.ID, "Hoofdsteden")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	q := &domain.Question{KlasID: klas.ID, VragenlijstID: lijstID, Vraag: "Hoofdstad van Nederland?", Antwoord: "Amsterdam"}
	if err := store.AddQuestion(ctx, q); err != nil {
		t.Fatalf("add question: %v", err)
	}

	sessieID, err := service.StartSession(ctx, docentID, klas.ID, lijstID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	vraagID, noMore, err := service.SendNextQuestion(ctx, docentID, sessieID)
	if err != nil || noMore {
		t.Fatalf("send question: noMore=%v err=%v", noMore, err)
	}

	out, err := service.SubmitAnswer(ctx, sessieID, fleur, vraagID, "  AMSTERDAM ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.Success || out.Status != domain.StatusCorrect {
		t.Fatalf("outcome = %+v", out)
	}
	out, err = service.SubmitAnswer(ctx, sessieID, daan, vraagID, "Rotterdam")
	if err != nil {
		t.Fatalf("submit daan: %v", err)
	}
	if !out.Success || out.Status != domain.StatusUnknown {
		t.Fatalf("daan outcome = %+v", out)
	}

	// the unique index backs the duplicate guard
	out, err = service.SubmitAnswer(ctx, sessieID, fleur, vraagID, "nogmaals")
	if err != nil {
		t.Fatalf("duplicate submit: %v", err)
	}
	if out.Success {
		t.Fatalf("duplicate submission succeeded: %+v", out)
	}

	// teacher override on Daan's pending answer
	res, err := store.ResultFor(ctx, sessieID, vraagID, daan)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if err := service.GradeAnswer(ctx, docentID, res.ID, domain.StatusTypo); err != nil {
		t.Fatalf("grade: %v", err)
	}

	rows, err := service.Scoreboard(ctx, docentID, sessieID)
	if err != nil {
		t.Fatalf("scoreboard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("scoreboard rows = %d, want 2", len(rows))
	}
	if rows[0].LeerlingID != fleur || rows[0].Points != 10 {
		t.Fatalf("leader = %+v, want fleur with 10", rows[0])
	}
	if rows[1].LeerlingID != daan || rows[1].Points != 5 {
		t.Fatalf("runner-up = %+v, want daan with 5", rows[1])
	}

	// answer key was cached in redis by the submits
	keys, err := redisClient.Keys(ctx, "lijst:*:answers").Result()
	if err != nil || len(keys) == 0 {
		t.Fatalf("expected cached answer key in redis, keys=%v err=%v", keys, err)
	}

	// exhausted list reports no_more without touching state
	if _, noMore, err = service.SendNextQuestion(ctx, docentID, sessieID); err != nil || !noMore {
		t.Fatalf("expected exhaustion, noMore=%v err=%v", noMore, err)
	}

	if err := service.StopSession(ctx, docentID, sessieID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := store.ActiveSessionForClass(ctx, klas.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("active session after stop: err = %v, want ErrNotFound", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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
	return fmt.Sprintf("%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
