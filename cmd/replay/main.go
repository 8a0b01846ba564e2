package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"wsreplay/config"
	"wsreplay/internal/ingest"
	"wsreplay/internal/memorystore"
	"wsreplay/internal/replay"
	"wsreplay/internal/ws"
	"wsreplay/logger"
	"wsreplay/pkg/fyers"
	"wsreplay/pkg/storage/sqlstore"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("replay server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := sqlstore.InitializeAndMigrate(cfg.Database, cfg.Log.Environment)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database ready", zap.String("driver", string(cfg.Database.Driver)))

	// fetch history for configured symbols before serving
	if len(cfg.Ingest.Symbols) > 0 {
		if err := ingestHistory(ctx, cfg, db, log); err != nil {
			return err
		}
	}

	var cache *memorystore.CandleStore
	if cfg.Replay.CacheSeries {
		cache = memorystore.NewCandleStore()
	}
	manager := replay.NewManager(
		replay.NewSharedLoader(db, cache, cfg.Replay.CacheMaxCandles),
		replay.ManagerOptions{Interval: cfg.Replay.Interval, LoadTimeout: cfg.Replay.LoadTimeout},
		log.Named("replay"),
	)

	if cfg.Log.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	wsServer := ws.NewServer(ctx, manager, cfg.Server, log.Named("ws"))
	health := func(ctx context.Context) error {
		if !db.IsHealthy(ctx) {
			return errors.New("database unreachable")
		}
		return nil
	}
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: ws.NewRouter(wsServer, health, log.Named("http")),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.Duration("interval", cfg.Replay.Interval))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	return wsServer.Shutdown(shutdownCtx)
}

func ingestHistory(ctx context.Context, cfg *config.Config, db *sqlstore.Client, log *zap.Logger) error {
	from, to, err := cfg.Ingest.Range()
	if err != nil {
		return err
	}

	client := fyers.NewRESTClient(cfg.Fyers.BaseURL, cfg.Fyers.AppID, cfg.Fyers.AccessToken, cfg.Fyers.Timeout,
		fyers.WithRateLimit(cfg.Fyers.RatePerSec, cfg.Fyers.Burst),
		fyers.WithBreaker(5, 30*time.Second),
	)
	in := ingest.NewIngester(client, db, ingest.NewTradingCalendar(cfg.Ingest.Calendar), ingest.Options{
		Resolution:  cfg.Ingest.Resolution,
		From:        from,
		To:          to,
		ChunkDays:   cfg.Ingest.ChunkDays,
		Concurrency: cfg.Ingest.Concurrency,
		Timeout:     cfg.Fyers.Timeout,
		Prune:       cfg.Ingest.Prune,
	}, log)

	report := in.Run(ctx, cfg.Ingest.Symbols)
	log.Info("historical fetch finished",
		zap.Int("stored", len(report.Stored)),
		zap.Strings("skipped", report.Skipped),
		zap.Strings("empty", report.Empty),
		zap.Strings("failed", report.Failed),
	)
	return ctx.Err()
}
