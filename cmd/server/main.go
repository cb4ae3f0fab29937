package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/database"
	"github.com/maheshrc27/contentflow/internal/dispatcher"
	"github.com/maheshrc27/contentflow/internal/gateway"
	"github.com/maheshrc27/contentflow/internal/lifecycle"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/queue"
	"github.com/maheshrc27/contentflow/internal/repository"
	"github.com/maheshrc27/contentflow/internal/retry"
	"github.com/maheshrc27/contentflow/internal/service"
	"github.com/maheshrc27/contentflow/internal/validation"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "contentflow",
	Short: "Review, schedule and publish generated social media posts",
	RunE:  runServe,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	cobra.OnInitialize(loadEnv)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dsn := cfg.PostgresURI
	if cfg.DatabaseDriver == database.DriverSQLite {
		dsn = cfg.SQLitePath
	}

	db, err := database.Open(ctx, cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, cfg.DatabaseDriver); err != nil {
		closeDB(db)
		return nil, err
	}
	return db, nil
}

// application holds the wired services shared by every command.
type application struct {
	cfg        *config.Config
	db         *sql.DB
	posts      repository.PostRepository
	settings   repository.SettingsRepository
	engine     *validation.Engine
	machine    *lifecycle.Machine
	dispatcher *dispatcher.Dispatcher
	queue      service.QueueService
	media      service.MediaService

	asynqClient *asynq.Client
	wakeups     *queue.Queue
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	limits := validation.Limits{}
	for name, n := range cfg.MaxLengths {
		p, err := models.ParsePlatform(name)
		if err != nil {
			continue
		}
		limits[p] = n
	}
	engine := validation.NewEngine(limits)
	machine := lifecycle.NewMachine(engine)

	postRepo := repository.NewPostRepository(db)
	eventRepo := repository.NewPostEventRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	d := dispatcher.New(postRepo, machine, engine, newGateway(cfg),
		retry.Policy{
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			MaxAttempts: cfg.Retry.MaxAttempts,
		},
		dispatcher.Config{
			BatchSize:      cfg.Dispatch.BatchSize,
			PublishTimeout: cfg.Dispatch.PublishTimeout,
			ClaimTTL:       cfg.Dispatch.ClaimTTL,
		},
		slog.Default().With("component", "dispatcher"))

	a := &application{
		cfg:        cfg,
		db:         db,
		posts:      postRepo,
		settings:   settingsRepo,
		engine:     engine,
		machine:    machine,
		dispatcher: d,
	}

	var notifier dispatcher.Notifier
	if cfg.RedisURI != "" {
		a.asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisURI})
		a.wakeups = queue.NewQueue(a.asynqClient, d, slog.Default().With("component", "queue"))
		d.SetNotifier(a.wakeups)
		notifier = a.wakeups
	} else {
		slog.Info("REDIS_URI not set, relying on the dispatch tick only")
	}

	a.queue = service.NewQueueService(db, postRepo, eventRepo, settingsRepo, machine, d, notifier)
	a.media = service.NewMediaService(a.queue, machine, service.NewR2Service(cfg.R2))
	return a, nil
}

func newGateway(cfg *config.Config) gateway.Gateway {
	if cfg.AyrshareAPIKey == "" {
		slog.Info("AYRSHARE_API_KEY not set, using the simulated gateway")
		return gateway.NewSimulated()
	}
	return gateway.NewAyrshare(cfg.AyrshareBaseURL, cfg.AyrshareAPIKey, &http.Client{Timeout: cfg.Dispatch.PublishTimeout})
}

func (a *application) Close() {
	if a.asynqClient != nil {
		if err := a.asynqClient.Close(); err != nil {
			slog.Info(err.Error())
		}
	}
	closeDB(a.db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}
