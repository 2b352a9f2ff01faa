package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/app/analysis"
	"github.com/vigilguard/vigil/pkg/app/policy"
	"github.com/vigilguard/vigil/pkg/common"
	"github.com/vigilguard/vigil/pkg/config"
	handlers "github.com/vigilguard/vigil/pkg/handlers/http"
	"github.com/vigilguard/vigil/pkg/infra/cache"
	"github.com/vigilguard/vigil/pkg/infra/events"
	infraLogger "github.com/vigilguard/vigil/pkg/infra/logger"
	"github.com/vigilguard/vigil/pkg/infra/reputation"
	"github.com/vigilguard/vigil/pkg/infra/webhook"
	"github.com/vigilguard/vigil/pkg/server"
	"github.com/vigilguard/vigil/pkg/server/middleware"
	"github.com/vigilguard/vigil/pkg/waf/behavior"
	"github.com/vigilguard/vigil/pkg/waf/ml"
	"github.com/vigilguard/vigil/pkg/waf/ratelimit"
	"github.com/vigilguard/vigil/pkg/waf/rules"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = 5 * time.Minute

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger("gateway")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config"
	}
	if err := config.Load(configPath); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	cacheInstance, err := cache.NewCache(common.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TLS:      cfg.Redis.TLS,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	ruleEngine, err := rules.NewEngine(logger, rules.DefaultCatalog(), cfg.Analysis.MatchBudget)
	if err != nil {
		logger.Fatalf("Failed to compile rule catalog: %v", err)
	}

	behaviorAnalyzer := behavior.NewAnalyzer(logger, behavior.NewStore())
	policies := policy.NewProvider(cfg.Policy, cfg.RateLimit)
	reputationTracker := reputation.NewTracker(cacheInstance)
	hub := events.NewHub(logger)

	var webhooks *webhook.Dispatcher
	if len(cfg.Webhooks.Endpoints) > 0 {
		webhooks = webhook.NewDispatcher(logger, webhook.Config{
			Endpoints:  cfg.Webhooks.Endpoints,
			MaxRetries: cfg.Webhooks.MaxRetries,
			Timeout:    cfg.Webhooks.Timeout,
		})
	}

	pipeline := analysis.NewPipeline(
		logger,
		cfg.Analysis,
		ruleEngine,
		ml.NewLinearModel(),
		behaviorAnalyzer,
		policies,
		analysis.Options{
			Reputation: reputationTracker,
			Hub:        hub,
			Webhooks:   webhooks,
			AlertScore: cfg.Webhooks.AlertScore,
		},
	)

	limiter := buildLimiter(ctx, logger, cfg, cacheInstance)

	middlewareTransport := middleware.NewTransport(
		middleware.NewContextMiddleware(logger, cfg),
		middleware.NewMetricsMiddleware(logger),
		middleware.NewGlobalRateLimitMiddleware(logger, limiter),
		middleware.NewTenantRateLimitMiddleware(logger, limiter, policies),
	)

	apiMiddlewareTransport := middleware.NewTransport(
		middleware.NewContextMiddleware(logger, cfg),
		middleware.NewMetricsMiddleware(logger),
	)

	handlerTransport := handlers.HandlerTransport{
		ForwardedHandler:      handlers.NewForwardedHandler(logger, pipeline, cfg),
		AnalyzeHandler:        handlers.NewAnalyzeHandler(logger, pipeline),
		LoginEventHandler:     handlers.NewLoginEventHandler(logger, behaviorAnalyzer),
		StuffingReportHandler: handlers.NewStuffingReportHandler(logger, behaviorAnalyzer),
		GetPolicyHandler:      handlers.NewGetPolicyHandler(logger, policies),
		UpdatePolicyHandler:   handlers.NewUpdatePolicyHandler(logger, policies),
		DeletePolicyHandler:   handlers.NewDeletePolicyHandler(logger, policies),
	}

	proxySrv := server.NewProxyServer(server.ProxyServerDI{
		Config:              cfg,
		Logger:              logger,
		MiddlewareTransport: middlewareTransport,
		HandlerTransport:    handlerTransport,
		Hub:                 hub,
	})

	apiSrv := server.NewAPIServer(server.APIServerDI{
		Config:              cfg,
		Logger:              logger,
		MiddlewareTransport: apiMiddlewareTransport,
		HandlerTransport:    handlerTransport,
	})

	go startSweeper(ctx, pipeline, behaviorAnalyzer)

	servers, serversCtx := errgroup.WithContext(ctx)
	servers.Go(proxySrv.Run)
	servers.Go(apiSrv.Run)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		fmt.Println("shutting down...")
	case <-serversCtx.Done():
		logger.Error("a server stopped unexpectedly, shutting down")
	}
	cancel()
	if err := proxySrv.Shutdown(); err != nil {
		fmt.Println("error shutting down proxy server:", err)
	}
	if err := apiSrv.Shutdown(); err != nil {
		fmt.Println("error shutting down api server:", err)
	}
	if err := servers.Wait(); err != nil {
		logger.Errorf("Server failed: %v", err)
	}
	if webhooks != nil {
		webhooks.Close()
	}
	fmt.Println("servers gracefully stopped")
}

func buildLimiter(ctx context.Context, logger *logrus.Logger, cfg *config.Config, cacheInstance *cache.Cache) ratelimit.PolicyLimiter {
	if cfg.RateLimit.Backend == "redis" {
		return ratelimit.NewRedisLimiter(cacheInstance.Client(), cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, nil)
	}
	limiter := ratelimit.NewMemoryLimiter(logger, ratelimit.Config{
		MaxRequests:   cfg.RateLimit.MaxRequests,
		Window:        cfg.RateLimit.Window,
		BlockDuration: cfg.RateLimit.BlockDuration,
		StoreCap:      cfg.RateLimit.StoreCap,
	})
	limiter.StartCleanup(ctx, sweepInterval)
	return limiter
}

// startSweeper prunes idle tracking state so memory stays bounded under
// long-lived traffic.
func startSweeper(ctx context.Context, pipeline *analysis.Pipeline, analyzer *behavior.Analyzer) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pipeline.BotTracker().Sweep(30 * time.Minute)
			analyzer.Store().Sweep(24 * time.Hour)
		}
	}
}
