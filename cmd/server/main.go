package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"insightstox/internal/cache"
	"insightstox/internal/config"
	"insightstox/internal/database"
	"insightstox/internal/handlers"
	"insightstox/internal/metrics"
	"insightstox/internal/middleware"
	"insightstox/internal/portfolio"
	"insightstox/internal/quotes"
	"insightstox/internal/rates"
	"insightstox/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	db, err := initDB(cfg.PostgresURL)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	repo := database.New(db, logger)
	prices := cache.NewPriceCache(cfg.QuoteTTL)

	table, err := rateTable(ctx, cfg, prices, m, logger)
	if err != nil {
		logger.Fatalf("rate table: %v", err)
	}

	yahoo := quotes.NewYahooClient(cfg.QuotesBaseURL, logger)
	quoteSvc := quotes.NewService(yahoo, prices, table, m, cfg.QuoteTimeout, logger)
	poster := portfolio.NewPoster(repo, quoteSvc, m, cfg.DBTimeout, logger)
	formatter := portfolio.NewFormatter(repo, quoteSvc, cfg.DisplayCurrency, cfg.DBTimeout, logger)
	h := handlers.NewHandler(poster, formatter, repo, logger)

	if lvl := logger.GetLevel(); lvl < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	rg := gin.New()
	rg.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics(m))
	rg.GET("/metrics", gin.WrapH(m.Handler()))
	h.Routes(rg, middleware.Auth(cfg.JWTSecret))

	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: rg}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// rateTable prefers a shared Redis hash when REDIS_URL is set, with a cron
// job purging expired price snapshots. Otherwise the rates live in memory and
// the refresh job does both.
func rateTable(ctx context.Context, cfg *config.Config, prices *cache.PriceCache, m *metrics.Metrics, logger *logrus.Logger) (rates.Table, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		t := rates.NewRedisTable(client, cfg.DisplayCurrency)
		logger.Infof("reading exchange rates from redis key %s", t.Key())
		if err := service.NewCachePurger(prices, logger).Start(ctx, cfg.PurgeSchedule); err != nil {
			return nil, err
		}
		return t, nil
	}

	table := rates.NewMemoryTable(cfg.DisplayCurrency)
	refresher := service.NewRateRefresher(rates.NewClient(cfg.RatesBaseURL, logger), table, prices, m, logger)
	if err := refresher.Start(ctx, cfg.RatesSchedule); err != nil {
		return nil, err
	}
	return table, nil
}

func initDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}
