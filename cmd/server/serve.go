package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/api/handlers"
	"github.com/maheshrc27/contentflow/internal/api/middleware"
	job "github.com/maheshrc27/contentflow/internal/jobs"
	"github.com/maheshrc27/contentflow/internal/queue"
	"github.com/maheshrc27/contentflow/internal/service"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the dispatcher and the wake-up worker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.LoadConfig()

	a, err := newApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	if n, err := a.dispatcher.RecoverStale(context.Background()); err != nil {
		slog.Info(err.Error())
	} else if n > 0 {
		slog.Info("released stale claims on startup", "count", n)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error(err.Error())
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	app.Get("/health", handlers.Health)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(a.queue, a.media)
	settings := handlers.NewSettingsHandler(service.NewSettingsService(a.settings), a.engine)
	handlers.RegisterRoutes(api, post, settings)

	// cron jobs
	c := cron.New()
	if err := c.AddJob(every(cfg.Dispatch.Interval), job.NewDispatchJob(a.dispatcher, cfg.Dispatch.Interval)); err != nil {
		return err
	}
	if err := c.AddJob(every(cfg.Dispatch.StaleInterval), job.NewStaleClaimJob(a.dispatcher)); err != nil {
		return err
	}
	c.Start()

	var worker *asynq.Server
	if a.wakeups != nil {
		worker = asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisURI}, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeDispatchPost, a.wakeups.HandleDispatchPostTask)

		go func() {
			log.Println("Starting the Asynq server...")
			if err := worker.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, c, worker, a)
	return nil
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, worker *asynq.Server, a *application) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	c.Stop()
	if worker != nil {
		worker.Shutdown()
	}
	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	a.Close()
	log.Println("Server shutdown complete.")
}
