package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/teilomillet/sous/config"
	serr "github.com/teilomillet/sous/errors"
	"github.com/teilomillet/sous/logging"
	"github.com/teilomillet/sous/server"
	"github.com/teilomillet/sous/server/handlers"
	"github.com/teilomillet/sous/server/metrics"
	"github.com/teilomillet/sous/server/middleware"
	"github.com/teilomillet/sous/server/processing"
	"github.com/teilomillet/sous/server/provider"
	"github.com/teilomillet/sous/server/routing"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// newGenerator is replaced in tests.
var newGenerator = provider.New

// loadEnv reads .env from the working directory. A missing file is fine.
func loadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFileOrDefault(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "Configuration is valid (provider=%s model=%s api_key=%s)\n",
		cfg.LLM.Provider, cfg.LLM.Model, config.MaskSecret(cfg.LLM.APIKey))
	return err
}

// newProcessor builds the generator and processor for cfg. A provider that
// cannot be built is returned as err with a nil processor; the caller decides
// whether that is fatal.
func newProcessor(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*processing.Processor, provider.Generator, error) {
	gen, err := newGenerator(ctx, cfg, logger, m)
	if err != nil {
		return nil, nil, err
	}
	proc, err := processing.NewProcessor(cfg.LLM.PromptTemplate, gen, logger)
	if err != nil {
		_ = provider.Close(gen)
		return nil, nil, err
	}
	return proc, gen, nil
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	recipe := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(recipe) == "" {
		return errors.New(serr.MsgNoRecipe)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, _, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	proc, gen, err := newProcessor(ctx, cfg, logger, nil)
	if err != nil {
		logger.Debug("provider unavailable", zap.Error(err))
		return errors.New(cfg.LLM.NotConfiguredMessage)
	}
	defer provider.Close(gen)

	ingredients, err := proc.Process(ctx, recipe)
	if err != nil {
		var genErr *processing.GenerationError
		if errors.As(err, &genErr) {
			return fmt.Errorf("%s API error: %w", provider.DisplayName(cfg.LLM.Provider), genErr.Err)
		}
		return err
	}

	w := cmd.Root().Writer
	for _, ing := range ingredients {
		if _, err := fmt.Fprintln(w, ing); err != nil {
			return err
		}
	}
	return nil
}

// app is the wired HTTP surface of one serve run.
type app struct {
	router      *routing.Router
	deps        routing.Dependencies
	ingredients *handlers.IngredientHandler
	gen         provider.Generator
}

func (a *app) close() {
	if a.gen != nil {
		_ = provider.Close(a.gen)
	}
}

// buildApp wires handlers, middleware and metrics for cfg. An unavailable
// provider is not an error: the handler answers with the not-configured body.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) *app {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
	}

	opts := []handlers.Option{
		handlers.WithMetrics(m),
		handlers.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	proc, gen, err := newProcessor(ctx, cfg, logger, m)
	if err != nil {
		if !errors.Is(err, provider.ErrNotConfigured) {
			logger.Error("failed to create text generation client", zap.Error(err))
		} else {
			logger.Warn("text generation provider not configured", zap.Error(err))
		}
		opts = append(opts, handlers.WithNotConfigured(cfg.LLM.NotConfiguredMessage, err))
	}
	ingredients := handlers.NewIngredientHandler(proc, provider.DisplayName(cfg.LLM.Provider), logger, opts...)

	deps := routing.Dependencies{
		Ingredients: ingredients,
		Metrics:     m,
		Version:     Version,
	}
	if cfg.RateLimit.Enabled {
		deps.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit, m)
	}
	if cfg.Queue.Enabled {
		deps.Queue = middleware.NewQueueMiddleware(cfg.Queue.MaxSize, m)
	}

	return &app{
		router:      routing.NewRouter(cfg, deps, logger),
		deps:        deps,
		ingredients: ingredients,
		gen:         gen,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, level, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()
	serr.SetLogger(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := buildApp(ctx, cfg, logger)
	defer a.close()

	if _, err := os.Stat(configPath); err == nil {
		watcher, err := config.NewConfigWatcher(configPath, logger)
		if err != nil {
			logger.Warn("config reload disabled", zap.Error(err))
		} else {
			defer watcher.Close()
			go server.WatchConfig(ctx, watcher, server.Reloadable{Level: &level, Queue: a.deps.Queue}, logger)
		}
	}

	srv := server.NewServer(cfg.Server, a.router, logger)
	logger.Info("starting sous",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("provider_configured", a.ingredients.Configured()),
	)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	if a.deps.Queue != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.deps.Queue.Shutdown(drainCtx); err != nil {
			logger.Warn("queue did not drain", zap.Error(err))
		}
	}
	logger.Info("server stopped")
	return nil
}
