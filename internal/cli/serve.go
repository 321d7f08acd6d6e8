package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fieldserve-backend/internal/admin"
	"fieldserve-backend/internal/auth"
	"fieldserve-backend/internal/config"
	"fieldserve-backend/internal/engine"
	"fieldserve-backend/internal/logger"
	"fieldserve-backend/internal/metadata"
	"fieldserve-backend/internal/storage"
	"fieldserve-backend/internal/store"
)

// NewServeCmd builds the serve command: config, logger, store, registry,
// routes, graceful shutdown.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	log := logger.L()
	log.Info("config loaded", zap.Int("port", cfg.Server.Port))

	// 3. Build the registry; an invalid catalog is fatal here, not a 500
	// at request time.
	reg, err := metadata.LoadRegistry(cfg.Metadata.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := reg.Check(); err != nil {
		return fmt.Errorf("entity catalog: %w", err)
	}
	if err := engine.CompileRules(reg); err != nil {
		return fmt.Errorf("compile rules: %w", err)
	}
	log.Info("entity catalog ready",
		zap.Int("entities", len(reg.EntityNames())),
		zap.Strings("business", reg.BusinessEntityNames()),
	)

	// 4. Connect to PostgreSQL
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	log.Info("database connected")

	// 5. Build the app
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.FiberErrorHandler,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authMW := auth.Middleware(cfg.Auth.JWTSecret)
	adminMW := auth.RequireAdmin()

	tokenTTL := time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
	auth.RegisterRoutes(app, auth.NewHandler(db, cfg.Auth.JWTSecret, tokenTTL), authMW)

	admin.RegisterRoutes(app, admin.NewHandler(reg), authMW, adminMW)

	files := storage.NewLocalStorage(cfg.Storage.LocalPath)
	h := engine.NewHandler(db, reg)
	fh := engine.NewFileHandler(db, reg, files, cfg.Storage.MaxFileSize)
	engine.RegisterRoutes(app, h, fh, authMW)

	// 6. Listen, shut down on SIGINT/SIGTERM
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("server listening", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
		return app.ShutdownWithTimeout(10 * time.Second)
	}
}
