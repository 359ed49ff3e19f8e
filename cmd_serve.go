package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/routes"
	"github.com/Ananth-NQI/sessiongate/internal/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and session API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (default $PORT or 8080)")
	return cmd
}

func runServe(ctx context.Context, port string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Server.Port = port
	}
	holder := config.NewHolder(cfg)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Printf("⚠️  Failed to close store: %v", err)
		}
	}()

	sessions := services.NewSessionManager(store, holder)
	app := newApp(sessions, holder)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	watcher := config.NewWatcher(config.ConfigFile(configPath), holder)
	watcher.OnReload(func(next *config.Config) {
		if next.Store.Driver != cfg.Store.Driver || next.StorePath() != cfg.StorePath() {
			log.Println("⚠️  Store settings changed; restart to apply them")
		}
	})
	g.Go(func() error {
		if err := watcher.Run(gctx); err != nil {
			log.Printf("⚠️  Config hot reload disabled: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.Listen(":" + cfg.Server.Port)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("🛑 Gracefully shutting down...")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	log.Println("========================================")
	log.Printf("🚀 sessiongate starting on port %s", cfg.Server.Port)
	log.Printf("📊 Storage: %s (%s)", storageType(cfg.Store.Driver), store.Path())
	log.Printf("🌍 Environment: %s", getEnvironment())
	log.Printf("🔐 Webhook validation: %v", cfg.ValidateWebhooks())
	log.Println("========================================")

	return g.Wait()
}

// newApp builds the fiber app with the usual middleware and all routes
func newApp(sessions *services.SessionManager, holder *config.Holder) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "sessiongate " + routes.Version,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	routes.SetupRoutes(app, sessions, holder)
	return app
}

func getEnvironment() string {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return "Production (Cloud Run)"
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "Development (Local)"
}
