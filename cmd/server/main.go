package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/grabvid/grabvid/internal/api"
	"github.com/grabvid/grabvid/internal/api/handler"
	"github.com/grabvid/grabvid/internal/auth"
	"github.com/grabvid/grabvid/internal/config"
	"github.com/grabvid/grabvid/internal/domain"
	"github.com/grabvid/grabvid/internal/downloader"
	"github.com/grabvid/grabvid/internal/ledger"
	"github.com/grabvid/grabvid/internal/metrics"
	"github.com/grabvid/grabvid/internal/repository"
	"github.com/grabvid/grabvid/internal/resolver"
	"github.com/grabvid/grabvid/internal/service"
	"github.com/grabvid/grabvid/internal/token"
	"github.com/grabvid/grabvid/pkg/kuaishou"
	"github.com/grabvid/grabvid/pkg/twitter"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("grabvid %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load .env if present; real env vars still win.
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting grabvid",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Open the credit/history database
	db, err := repository.OpenDB(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	creditRepo := repository.NewSQLiteCreditRepository(db)
	historyRepo := repository.NewSQLiteDownloadHistoryRepository(db)
	apiKeyRepo := repository.NewSQLiteAPIKeyRepository(db)

	// Core services
	codec, err := token.NewCodec([]byte(cfg.Token.Secret))
	if err != nil {
		logger.Error("failed to create token codec", "error", err)
		os.Exit(1)
	}
	sessions := auth.NewSessionVerifier(cfg.Token.SessionSecret, time.Now)
	apiKeys := auth.NewAPIKeyService(apiKeyRepo, time.Now)
	credits := ledger.NewService(creditRepo, time.Now, logger)
	dl := downloader.NewHTTPDownloader(cfg.Download, logger)
	m := metrics.NewMetrics()

	// Twitter resolution: search API first, info page as fallback. The
	// fallback HEAD-checks candidates through the shared downloader.
	probe := func(ctx context.Context, url string) bool {
		res, err := dl.Probe(ctx, domain.PlatformTwitter, url)
		return err == nil && res.Accessible
	}
	twitterChain := resolver.NewChain(domain.PlatformTwitter, logger,
		twitter.NewSearchAPIResolver(cfg.Resolver.Timeout, logger),
		twitter.NewInfoPageResolver(cfg.Resolver.Timeout, probe, logger),
	)

	// Kuaishou resolution: signed API first, legacy page scrape as fallback.
	signedAPI := kuaishou.NewSignedAPIResolver(cfg.Kuaishou.APISecret, cfg.Resolver.Timeout, logger)
	signedAPI.SetBaseURL(cfg.Kuaishou.APIBase)
	kuaishouChain := resolver.NewChain(domain.PlatformKuaishou, logger,
		signedAPI,
		kuaishou.NewLegacyPageResolver(cfg.Resolver.Timeout, logger),
	)

	resolveCfg := service.ResolveConfig{
		CacheSize:     cfg.Resolver.CacheSize,
		CacheTTL:      cfg.Resolver.CacheTTL,
		BatchLimit:    cfg.Resolver.BatchLimit,
		BatchInterval: cfg.Resolver.BatchInterval,
	}

	twitterSite := service.TwitterSite()
	kuaishouSite := service.KuaishouSite()

	twitterResolve, err := service.NewResolveService(twitterSite, twitterChain, codec, resolveCfg, m, logger)
	if err != nil {
		logger.Error("failed to create twitter resolve service", "error", err)
		os.Exit(1)
	}
	kuaishouResolve, err := service.NewResolveService(kuaishouSite, kuaishouChain, codec, resolveCfg, m, logger)
	if err != nil {
		logger.Error("failed to create kuaishou resolve service", "error", err)
		os.Exit(1)
	}

	twitterFulfill := service.NewFulfillmentService(twitterSite, codec, credits, historyRepo, dl, m, logger)
	kuaishouFulfill := service.NewFulfillmentService(kuaishouSite, codec, credits, historyRepo, dl, m, logger)

	// Twitter downloads require a session and debit credits; Kuaishou
	// downloads are anonymous and stream straight through.
	twitterPolicy := service.Policy{
		RequireAuth:    true,
		BillingEnabled: true,
		DeliveryMode:   service.DeliveryDetail,
	}
	kuaishouPolicy := service.Policy{
		RequireAuth:    false,
		BillingEnabled: false,
		DeliveryMode:   service.DeliveryStream,
	}

	// Setup router
	router := api.NewRouter(api.RouterDeps{
		Twitter:  handler.NewPlatformHandler(twitterResolve, twitterFulfill, twitterPolicy, logger),
		Kuaishou: handler.NewPlatformHandler(kuaishouResolve, kuaishouFulfill, kuaishouPolicy, logger),
		Credits:  handler.NewCreditsHandler(credits, historyRepo, logger),
		Admin:    handler.NewAdminHandler(credits, apiKeys, cfg.Credits.GrantValidMonths, logger),
		V1:       handler.NewV1Handler(twitterChain, logger),
		Health:   handler.NewHealthHandler(db),
		Sessions: sessions,
		APIKeys:  apiKeys,
		Metrics:  m,
		AdminKey: cfg.Admin.APIKey,
	})

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
