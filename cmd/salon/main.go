package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/agenda"
	"salonbook/internal/api"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/events"
	"salonbook/internal/filter"
	"salonbook/internal/lifecycle"
	"salonbook/internal/lock"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/notify"
	"salonbook/internal/session"
	"salonbook/shared/logging"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.App.Environment != "production" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	db, err := database.NewDB(cfg.Database.Path, loc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	var guard lifecycle.InFlightGuard
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		guard = lock.NewRedisGuard(rdb, cfg.LockTTL())
	} else {
		logger.Warn().Msg("redis not configured, transitions are guarded in-process only")
		guard = lifecycle.NewMemoryGuard()
	}

	bus := events.NewBus(logging.NewZerolog(logger, "events"))
	bus.Subscribe("journal", events.AnyStatus, func(rec models.TransitionRecord) error {
		return db.AppendTransition(context.Background(), rec)
	})

	notifier := startNotifier(ctx, cfg, bus, &logger)
	if notifier != nil {
		defer notifier.Stop()
	}

	view := agenda.NewView(filter.NewEngine(logging.NewZerolog(logger, "filter")))
	refresher := agenda.NewRefresher(db, view, cfg.RefreshInterval(), logging.NewZerolog(logger, "agenda"))
	if err := refresher.Refresh(ctx); err != nil {
		logger.Fatal().Err(err).Msg("initial agenda load failed")
	}
	refresher.Start(ctx)
	defer refresher.Stop()

	controller := lifecycle.NewController(
		&lifecycle.Config{DefaultCompletionNote: cfg.Lifecycle.CompletionNote},
		db,
		view,
		guard,
		bus,
		logging.NewZerolog(logger, "lifecycle"),
	)

	sessions := session.NewManager(cfg.IdleMinutes(), nil, logging.NewZerolog(logger, "session"))
	defer sessions.Close()

	watcher := config.NewWatcher("", cfg, 30*time.Second, logging.NewZerolog(logger, "config"))
	go watcher.Run(ctx, func(r config.Reloadable) {
		sessions.SetIdleMinutes(r.IdleMinutes)
	})

	backup := database.NewBackupService(db, cfg.Backup, &logger)
	go backup.Start(ctx)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	perSecond, burst := cfg.RateLimit()
	server := api.NewHTTPServer(api.Config{
		Address:            cfg.API.Address,
		RateLimitPerSecond: perSecond,
		RateLimitBurst:     burst,
		SheetName:          cfg.SheetName(),
		Location:           loc,
	}, view, controller, db, sessions, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("API shutdown error")
		}
	}()

	logger.Info().Str("timezone", loc.String()).Msg("salon agenda started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("API server error")
	}
	logger.Info().Msg("salon agenda stopped")
}

func startNotifier(ctx context.Context, cfg *config.Config, bus *events.Bus, logger *zerolog.Logger) *notify.Notifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Warn().Msg("telegram enabled without bot_token, notifications disabled")
		return nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("telegram bot init failed, notifications disabled")
		return nil
	}

	ncfg := notify.DefaultConfig()
	ncfg.Chats = cfg.Telegram.Chats
	notifier := notify.NewNotifier(ncfg, botAPI, logging.NewZerolog(*logger, "notify"))
	bus.Subscribe("telegram", events.AnyStatus, notifier.Handle)
	notifier.Start(ctx)
	return notifier
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
