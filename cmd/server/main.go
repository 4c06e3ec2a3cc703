package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/restaurant-auth/internal/config"
	"github.com/iliyamo/restaurant-auth/internal/database"
	"github.com/iliyamo/restaurant-auth/internal/handler"
	"github.com/iliyamo/restaurant-auth/internal/middleware"
	"github.com/iliyamo/restaurant-auth/internal/queue"
	"github.com/iliyamo/restaurant-auth/internal/repository"
	"github.com/iliyamo/restaurant-auth/internal/router"
	"github.com/iliyamo/restaurant-auth/internal/service"
	"github.com/iliyamo/restaurant-auth/internal/token"
	"github.com/iliyamo/restaurant-auth/internal/utils"
)

func main() {
	logger := log.New("restaurant-auth")
	logger.SetHeader("${time_rfc3339} ${level} ${prefix}")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.Env == "dev" {
		logger.SetLevel(log.DEBUG)
	} else {
		logger.SetLevel(log.INFO)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	codec, err := token.NewCodec(cfg.JWTSecret, cfg.AccessTTL, cfg.JWTIssuer)
	if err != nil {
		logger.Fatalf("token codec: %v", err)
	}

	var events queue.Publisher = queue.NopPublisher{}
	var workers sync.WaitGroup
	if cfg.Events.Enabled {
		amqpPub := queue.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Queue)
		defer amqpPub.Close()
		dispatcher := queue.NewDispatcher(amqpPub, 256, logger)
		defer func() {
			dispatcher.Close()
			if n := dispatcher.Dropped(); n > 0 {
				logger.Warnf("events: %d audit events dropped (buffer full)", n)
			}
		}()
		events = dispatcher

		consumer := &queue.Consumer{
			URL:    cfg.Events.URL,
			Queue:  cfg.Events.Queue,
			LogDir: cfg.Events.LogDir,
			Logger: logger,
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			consumer.Run(ctx)
		}()
	}

	refresh := service.NewRefreshService(repository.NewTokenRepo(db), cfg.RefreshTTL)
	refresh.RevokeAllOnReuse = cfg.RefreshReuseRevokesAll
	refresh.Events = events
	refresh.Logger = logger

	auth := service.NewAuthService(repository.NewUserRepo(db), refresh, codec, utils.NewPasswordHasher(cfg.BcryptCost))
	auth.Events = events
	auth.Logger = logger

	if cfg.BootstrapOwnerEmail != "" {
		if _, err := auth.EnsureOwner(ctx, service.RegisterInput{
			Email:    cfg.BootstrapOwnerEmail,
			Password: cfg.BootstrapOwnerPassword,
		}); err != nil {
			logger.Fatalf("bootstrap owner: %v", err)
		}
	}

	sweeper := &service.Sweeper{Refresh: refresh, Interval: cfg.SweepInterval, Logger: logger}
	workers.Add(1)
	go func() {
		defer workers.Done()
		sweeper.Run(ctx)
	}()

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.BodyLimit("64K"))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil && v.Status >= http.StatusInternalServerError {
				logger.Errorf("%s %s %d %s id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			logger.Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), codec, limiter)

	go func() {
		addr := ":" + cfg.Port
		logger.Infof("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	workers.Wait()
}
