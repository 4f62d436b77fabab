package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"interview-planner/internal/app"
	"interview-planner/internal/config"
	"interview-planner/internal/logger"
	"interview-planner/internal/rules"
	"interview-planner/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	loc, err := cfg.Location()
	if err != nil {
		zl.Warn("falling back to UTC", zap.Error(err))
	}
	cal := rules.NewCalendar(loc)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	store := app.NewPGStore(pool, cal)
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = store.Migrate(migrateCtx)
	cancel()
	if err != nil {
		zl.Fatal("failed to migrate db", zap.Error(err))
	}

	a := &app.App{
		Store:    store,
		Calendar: cal,
		Limits:   rules.LimitPolicy{Calendar: cal, DefaultLimit: cfg.DefaultBookingLimit},
		Log:      zl,
		Google:   app.NewGoogleCalendarConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Warn("redis unavailable, dashboard cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			a.Cache = app.NewRedisDashboardCache(rdb, cfg.DashboardCacheTTL)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), app.RequestID(), app.RequestLogger(zl))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins())))
	if cfg.RateLimitPerMinute > 0 {
		router.Use(app.NewRateLimiter(cfg.RateLimitPerMinute).Middleware(zl))
	}

	a.Routes(router, app.AuthMiddleware(app.AuthConfig{
		JWTSecret:    cfg.JWTSecret,
		StaticTokens: cfg.Tokens(),
	}))

	zl.Info("starting interview planner",
		zap.String("env", cfg.AppEnv),
		zap.String("timezone", cal.Location.String()),
		zap.Bool("dashboard_cache", a.Cache != nil),
		zap.Bool("google_calendar", a.Google != nil),
	)
	if err := server.Run(router, cfg.AppPort, cfg.ShutdownTimeout, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Google-Token", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
