// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tsusho/auth"
	"tsusho/codes"
	"tsusho/config"
	"tsusho/feed"
	"tsusho/loader"
	"tsusho/reception"
	"tsusho/schedule"
	"tsusho/visit"
)

// souDir はマスタCSV (児童・利用予定・理由コード) の置き場所です。
const souDir = "SOU"

func main() {
	cfgs := config.NewManager(config.PathFromEnv())
	cfg, err := cfgs.Load()
	logger := config.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Failed to load config file: %v. Using defaults.", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to database...")
	dbConn, err := loader.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer dbConn.Close()
	logger.Info("Database connection successful.")

	if err := loader.InitDatabase(ctx, dbConn, souDir, logger); err != nil {
		logger.Fatalf("Database initialization failed: %v", err)
	}
	logger.Info("Database initialization complete.")

	authService := auth.NewService(dbConn, cfg.JWTSecret, cfg.TokenTTL(), logger)
	if err := authService.EnsureAdmin(ctx, cfg.AdminLoginID, cfg.AdminPassword); err != nil {
		logger.Fatalf("failed to create initial staff account: %v", err)
	}

	table := codes.NewTable()
	if err := table.Load(ctx, dbConn); err != nil {
		logger.Warnf("Failed to load code master: %v. Reason names may not display correctly.", err)
	}

	hub := feed.NewHub()
	var notifier visit.Notifier = hub
	if cfg.RedisAddr != "" {
		bridge := feed.NewRedisBridge(feed.NewRedisClient(cfg.RedisAddr), cfg.RedisChannel, hub, logger)
		notifier = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warnf("redis bridge stopped: %v", err)
			}
		}()
		logger.WithField("redisAddr", cfg.RedisAddr).Info("Redis feed bridge enabled.")
	}

	visits := visit.NewService(dbConn, loc, notifier, logger)
	generator := schedule.NewGenerator(dbConn, loc, cfg.OfficeID, notifier, logger)
	desk := reception.NewDesk(dbConn, visits, logger)

	// 起動時に今日の分を作っておく (既存の実績はそのまま)
	if n, err := generator.Generate(ctx, generator.Today()); err != nil {
		logger.Warnf("daily generation failed: %v", err)
	} else if n > 0 {
		logger.Infof("Created %d visit records for today.", n)
	}
	scheduler, err := generator.Start(cfg.DailyGenerateCron)
	if err != nil {
		logger.Fatalf("invalid dailyGenerateCron: %v", err)
	}
	defer scheduler.Stop()

	mux := http.NewServeMux()
	SetupRoutes(mux, &App{
		DB:        dbConn,
		Configs:   cfgs,
		Auth:      authService,
		Codes:     table,
		Hub:       hub,
		Visits:    visits,
		Generator: generator,
		Desk:      desk,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on http://localhost%s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server start error: %v", err)
		}
	}()

	if cfg.OpenBrowser {
		openBrowser("http://localhost"+cfg.ListenAddr, logger)
	}

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
}

func openBrowser(url string, logger *logrus.Logger) {
	var err error
	switch runtime.GOOS {
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = exec.Command("xdg-open", url).Start()
	}
	if err != nil {
		logger.Warnf("failed to open browser: %v", err)
	}
}
