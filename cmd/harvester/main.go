package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/denizaktas/beautyharvest/internal/api"
	"github.com/denizaktas/beautyharvest/internal/browser"
	"github.com/denizaktas/beautyharvest/internal/config"
	"github.com/denizaktas/beautyharvest/internal/database"
	"github.com/denizaktas/beautyharvest/internal/events"
	"github.com/denizaktas/beautyharvest/internal/quality"
	"github.com/denizaktas/beautyharvest/internal/runner"
	"github.com/denizaktas/beautyharvest/internal/sites"
	"github.com/denizaktas/beautyharvest/internal/storage"
)

// sessionFactory adapts the browser manager to the runner's factory
// contract.
type sessionFactory struct {
	manager *browser.Manager
}

func (f *sessionFactory) NewSession(rateSeconds float64) (runner.Session, error) {
	return f.manager.NewSession(rateSeconds)
}

func (f *sessionFactory) Release(s runner.Session) error {
	bs, ok := s.(*browser.Session)
	if !ok {
		return nil
	}
	return f.manager.Release(bs)
}

func (f *sessionFactory) WithSession(rateSeconds float64, fn func(runner.Session) error) error {
	return f.manager.WithSession(rateSeconds, func(s *browser.Session) error {
		return fn(s)
	})
}

func main() {
	var (
		site     = flag.String("site", "", "site profile to harvest")
		category = flag.String("category", "", "category to harvest")
		maxProd  = flag.Int("max", 0, "maximum products per run")
		workers  = flag.Int("workers", 0, "extraction worker count")
		serve    = flag.Bool("serve", false, "run the HTTP API instead of a one-shot harvest")
		headless = flag.Bool("headless", true, "run the browser headless")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, err := loadProfiles(cfg.Harvest.SitesFile)
	if err != nil {
		logger.Error("failed to load site profiles", "error", err)
		os.Exit(1)
	}

	manager, err := browser.NewManager(&browser.Options{
		Headless:    *headless && cfg.Browser.Headless,
		ProxyServer: cfg.Browser.ProxyServer,
		Humanizer:   browser.NewNaturalHumanizer(),
	})
	if err != nil {
		logger.Error("failed to start browser", "error", err)
		os.Exit(1)
	}
	defer manager.Close()

	sinks, cleanup, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up sinks", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	r := runner.New(&sessionFactory{manager: manager}, quality.NewValidator(quality.DefaultConfig()), sinks...)
	registry := runner.NewRegistry(r, profiles)

	if *serve {
		serveAPI(ctx, cfg, registry, logger)
		return
	}

	if *site == "" || *category == "" {
		fmt.Fprintln(os.Stderr, "usage: harvester -site <name> -category <name> [-max N] [-workers N]")
		fmt.Fprintf(os.Stderr, "known sites: %v\n", profiles.Names())
		os.Exit(2)
	}

	params := runner.Params{
		Site:        *site,
		Category:    *category,
		MaxProducts: orDefault(*maxProd, cfg.Harvest.MaxProducts),
		Workers:     orDefault(*workers, cfg.Harvest.Workers),
		Deadline:    cfg.Harvest.RunDeadline,
		URLTimeout:  cfg.Harvest.URLTimeout,
	}

	profile, err := profiles.Get(params.Site)
	if err != nil {
		logger.Error("unknown site", "site", params.Site, "error", err)
		os.Exit(1)
	}

	summary, err := r.Run(ctx, profile, params)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func loadProfiles(path string) (*sites.Registry, error) {
	if path == "" {
		return sites.Defaults(), nil
	}
	return sites.Load(path)
}

// buildSinks wires the configured persistence targets: the JSON result store
// always, Postgres and Redis only when their endpoints are configured.
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]runner.Sink, func(), error) {
	var sinks []runner.Sink
	var closers []func()
	cleanup := func() {
		for _, fn := range closers {
			fn()
		}
	}

	store, err := storage.NewResultStore(cfg.Harvest.ResultsFile)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to open result store: %w", err)
	}
	sinks = append(sinks, store)

	if cfg.Database.Enabled() {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, db.Close)

		if err := db.Migrate(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("failed to migrate database: %w", err)
		}
		sinks = append(sinks, db)
		logger.Info("database sink enabled", "host", cfg.Database.Host)
	}

	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect to redis: %w", err)
		}

		publisher := events.NewPublisher(client)
		closers = append(closers, func() { publisher.Close() })
		sinks = append(sinks, publisher)
		logger.Info("event sink enabled", "addr", cfg.Redis.Addr)
	}

	return sinks, cleanup, nil
}

func serveAPI(ctx context.Context, cfg *config.Config, registry *runner.Registry, logger *slog.Logger) {
	handlers := api.NewHandlers(registry, ctx, logger)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handlers.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	registry.Wait()
	logger.Info("server stopped")
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
