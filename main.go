package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"evalsum/internal/api"
	"evalsum/internal/config"
	"evalsum/internal/extract"
	"evalsum/internal/logging"
	"evalsum/internal/metrics"
	"evalsum/internal/ratelimit"
	"evalsum/internal/redis"
	"evalsum/internal/service/ai"
	"evalsum/internal/service/evaluation"
	"evalsum/internal/storage"
	"evalsum/internal/upload"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load(os.Getenv("EVALSUM_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		runLister api.RunLister
		recorder  evaluation.RunRecorder
		readiness = map[string]api.Pinger{}
	)
	if cfg.Database.Driver != "" {
		db, driver, err := storage.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.Migrate(db, driver); err != nil {
			return err
		}
		runStore := storage.NewRunStore(db)
		runLister, recorder = runStore, runStore
		readiness["database"] = runStore
		logger.Info("run history enabled", zap.String("driver", driver))
	}

	limiter, rdb, err := newLimiter(cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		readiness["redis"] = rdb
	}

	extractor, err := extract.NewExtractor(ctx, logger)
	if err != nil {
		return err
	}
	keys := ai.NewKeyValidator(cfg.Provider, nil, logger)
	summarizer := ai.NewSummarizer(cfg.Provider, cfg.Summary.Timeout.Std(), nil, logger)
	pipeline := evaluation.NewService(keys, extractor, summarizer, recorder, evaluation.Options{
		MaxChars:         cfg.Summary.MaxChars,
		RequireSections:  cfg.Summary.RequireSections,
		CredentialSource: cfg.Provider.CredentialSource,
		ServerKey:        cfg.Provider.APIKey,
	}, logger)

	uploads := upload.NewParser(cfg.Upload.Dir, cfg.Upload.MaxBytes, logger)
	sweeper, err := upload.NewSweeper(cfg.Upload.Dir, cfg.Upload.SweepInterval.Std(), cfg.Upload.OrphanTTL.Std(), logger)
	if err != nil {
		return err
	}
	if _, err := sweeper.Sweep(); err != nil {
		logger.Warn("initial sweep", zap.Error(err))
	}
	sweeper.Start()

	if !cfg.Server.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logging.GinLogger(logger), logging.GinRecovery(logger), metrics.GinMiddleware())

	handler := api.NewHandler(uploads, pipeline, keys, api.Options{
		Development:   cfg.Server.Development,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		CheckTimeout:  cfg.Summary.Timeout.Std(),
		Limiter:       limiter,
		Runs:          runLister,
		Readiness:     readiness,
	}, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.Server.Address),
			zap.String("provider", cfg.Provider.Name),
			zap.String("model", cfg.Provider.Model),
			zap.String("credential_source", cfg.Provider.CredentialSource),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sweeper.Stop(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

// newLimiter picks the rate limit backend. Redis is used when enabled,
// otherwise hits are counted in process. The redis client is returned so the
// caller can close it and check it for readiness.
func newLimiter(cfg *config.Config, logger *zap.Logger) (ratelimit.Limiter, *redis.Client, error) {
	if cfg.RateLimit.Requests <= 0 {
		return nil, nil, nil
	}
	window := cfg.RateLimit.Window.Std()
	if !cfg.Redis.Enabled {
		return ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, window), nil, nil
	}
	client, err := redis.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("rate limit backed by redis", zap.String("addr", client.Addr()))
	return ratelimit.NewRedisLimiter(client, cfg.RateLimit.Requests, window), client, nil
}
