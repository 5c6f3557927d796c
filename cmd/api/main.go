package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-bridge/internal/audit"
	"crm-bridge/internal/auth"
	"crm-bridge/internal/calls"
	"crm-bridge/internal/config"
	"crm-bridge/internal/crm"
	"crm-bridge/internal/httpapi"
	"crm-bridge/internal/hubspot"
	"crm-bridge/internal/queue"
	"crm-bridge/internal/ratelimit"
	"crm-bridge/pkg/logger"
	"crm-bridge/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(rootCtx, stop, cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, log *slog.Logger) error {
	// Audit trail (optional)
	var recorder crm.Recorder
	if cfg.DBEnabled() {
		db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return err
		}
		defer db.Close()

		repo := audit.NewPostgresRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		recorder = audit.NewService(repo)
		log.Info("audit trail enabled", "db_host", cfg.DB.Host)
	}

	// Rate limiting (optional)
	var limiter ratelimit.Limiter
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return err
		}
		defer rdb.Close()

		rl, err := ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
		if err != nil {
			return err
		}
		limiter = rl
		log.Info("rate limiting enabled", "max", cfg.RateLimit.Max, "window", cfg.RateLimit.Window.String())
	}

	guard := auth.RequireAPIKey(cfg.HubSpot.APIKey)
	var tokenFrom func(context.Context) (string, bool)
	if cfg.App.AuthMode == config.AuthModeBearer {
		guard = auth.RequireBearerToken()
		tokenFrom = auth.AccessToken
	}

	baseURL := cfg.HubSpot.BaseURL()
	client, err := hubspot.New(hubspot.Config{
		BaseURL:          baseURL,
		Token:            cfg.HubSpot.APIKey,
		Timeout:          cfg.HubSpot.Timeout,
		TokenFromContext: tokenFrom,
	})
	if err != nil {
		return err
	}
	log.Info("using HubSpot API endpoint", "base_url", baseURL, "region", cfg.HubSpot.Region(), "auth_mode", cfg.App.AuthMode)

	svc := crm.NewService(client, crm.Options{
		Region: cfg.HubSpot.Region(),
		Policy: cfg.HubSpot.AssociationPolicy,
		Audit:  recorder,
	})

	var assocQueue *queue.Queue
	if cfg.HubSpot.AssociationPolicy == config.AssociationAsync {
		assocQueue = queue.New("associations", crm.AssociationHandler(client), queue.Options{
			MaxRetries: uint64(cfg.Queue.MaxRetries),
			OnDone:     svc.AssociationDone,
			Logger:     log,
		})
		svc.UseQueue(assocQueue)
	}

	r, err := newRouter(routerDeps{
		Log:            log,
		ExposeStacks:   cfg.ExposeErrorStacks(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustedProxies: cfg.App.TrustedProxies,
		Guard:          guard,
		Limiter:        limiter,
		Handlers: httpapi.Handlers{
			CRM:         svc,
			Calls:       calls.NewTracker(),
			Environment: cfg.App.Env,
		},
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if assocQueue != nil {
		if err := assocQueue.Close(shutdownCtx); err != nil {
			log.Error("queue did not drain", "queue", assocQueue.Name(), "pending", assocQueue.Len(), "err", err)
		}
	}
	return nil
}
