package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"market-intel/internal/alerts"
	"market-intel/internal/analysis"
	"market-intel/internal/api"
	"market-intel/internal/clv"
	"market-intel/internal/config"
	"market-intel/internal/engine"
	"market-intel/internal/logging"
	"market-intel/internal/poller"
	"market-intel/internal/server"
	"market-intel/internal/store"
)

const usage = `usage:
  intel serve          HTTP API and job scheduler (default)
  intel run poll       one odds snapshot pass
  intel run clv        one closing-line pass`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 2
	}

	logger, err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat, "market-intel")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging configuration: %v\n", err)
		return 2
	}

	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}
	var job string
	switch cmd {
	case "serve":
	case "run":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, usage)
			return 2
		}
		switch args[1] {
		case "poll", engine.JobOddsSnapshot:
			job = engine.JobOddsSnapshot
		case "clv":
			job = engine.JobCLV
		default:
			fmt.Fprintln(os.Stderr, usage)
			return 2
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	sports, thresholds, err := config.LoadCatalog(cfg.SportsFile)
	if err != nil {
		logger.Error("Failed to load sports catalog", "file", cfg.SportsFile, "error", err)
		return 1
	}

	db, err := openStore(cfg)
	if err != nil {
		logger.Error("Failed to open store", "driver", cfg.DBDriver, "error", err)
		return 1
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier, closeAlerts := buildNotifier(ctx, cfg)
	defer closeAlerts()

	oddsClient := api.NewOddsClient(cfg.OddsAPIKey, cfg.OddsAPIBaseURL, cfg.OddsRegions, config.DefaultRequestsPerMin, cfg.RequestTimeout)

	snapshots := poller.New(oddsClient, db, notifier, poller.Config{
		Sports:     sports,
		Thresholds: thresholds,
		Window:     cfg.PollWindow,
		MaxAge:     cfg.SnapshotMaxAge,
		CallDelay:  cfg.CallDelay,
	})
	tracker := clv.New(oddsClient, db, clv.Config{
		SharpBookmaker: cfg.SharpBookmaker,
		Window:         cfg.CLVWindow,
		BatchSize:      cfg.CLVBatchSize,
		CallDelay:      cfg.CallDelay,
	})
	eng := engine.New(snapshots, tracker, engine.Config{
		PollSchedule: cfg.PollSchedule,
		CLVSchedule:  cfg.CLVSchedule,
		JobTimeout:   cfg.JobTimeout,
	})

	if cmd == "run" {
		return runJob(ctx, eng, job)
	}

	an := analysis.New(sports, thresholds)
	srv := server.New(an, db, eng, db, server.Options{
		CORSOrigins:    cfg.CORSOrigins,
		CronSecret:     cfg.CronSecret,
		RequestTimeout: 30 * time.Second,
	})
	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET is empty; job triggers are unauthenticated")
	}
	if !oddsClient.HasAPIKey() {
		logger.Warn("ODDS_API_KEY is empty; batch jobs will fail until it is set")
	}

	logger.Info("Starting market-intel",
		"port", cfg.Port,
		"db", cfg.DBDriver,
		"sports", len(sports),
		"poll_schedule", cfg.PollSchedule,
		"clv_schedule", cfg.CLVSchedule,
	)
	return serve(ctx, cfg.Port, srv, eng)
}

func openStore(cfg config.Config) (*store.DB, error) {
	if cfg.DBDriver == store.DriverPostgres {
		return store.Open(store.DriverPostgres, cfg.DatabaseURL)
	}
	return store.Open(store.DriverSQLite, cfg.DBPath)
}

// buildNotifier wires the alert sinks. Redis and Telegram are optional; a
// sink that cannot be set up is logged and left out.
func buildNotifier(ctx context.Context, cfg config.Config) (*alerts.Notifier, func()) {
	sinks := []alerts.Sink{alerts.LogSink{}}
	var gate alerts.Gate
	closeFn := func() {}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Warn("Redis disabled: invalid REDIS_URL", "error", err)
		} else {
			client := redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := client.Ping(pingCtx).Err()
			cancel()
			if err != nil {
				slog.Warn("Redis disabled: unreachable", "error", err)
				client.Close()
			} else {
				sinks = append(sinks, alerts.NewStreamSink(client))
				gate = alerts.NewRedisGate(client)
				closeFn = func() { client.Close() }
				slog.Info("Redis alert stream enabled")
			}
		}
	}

	if cfg.TelegramBotToken != "" {
		tg, err := alerts.NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			slog.Warn("Telegram disabled", "error", err)
		} else {
			sinks = append(sinks, tg)
			slog.Info("Telegram alerts enabled", "chat_id", cfg.TelegramChatID)
		}
	}

	return alerts.NewNotifier(cfg.AlertCooldown, gate, sinks...), closeFn
}

// runJob runs one pass and prints its summary as JSON. A pre-flight failure
// such as a missing provider key exits non-zero.
func runJob(ctx context.Context, eng *engine.Engine, job string) int {
	res, err := eng.RunOnce(ctx, job)
	if err != nil {
		if errors.Is(err, api.ErrMissingAPIKey) {
			slog.Error("ODDS_API_KEY is required", "job", job)
		}
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		slog.Error("Failed to write summary", "error", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, port string, handler http.Handler, eng *engine.Engine) int {
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // job triggers run synchronously
		IdleTimeout:  60 * time.Second,
	}

	errs := make(chan error, 2)
	go func() {
		if err := eng.Run(ctx); err != nil {
			errs <- fmt.Errorf("scheduler: %w", err)
		}
	}()
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping...")
	case err := <-errs:
		slog.Error("Fatal error", "error", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	return code
}
