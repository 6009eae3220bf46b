package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/api"
	"taskboard/domain"
	"taskboard/storage"
	"taskboard/storage/memstore"
	"taskboard/storage/sqlstore"
	"taskboard/storage/tablestore"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.StandardLogger()
	if cfg.debug {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.logFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var events domain.EventPublisher
	if cfg.eventsQueue != "" {
		q, err := storage.NewEventQueue(cfg.storageConn, cfg.eventsQueue)
		if err != nil {
			log.Fatalf("event queue: %v", err)
		}
		events = q
	}

	var deduper api.Deduper
	if cfg.redisConn != "" {
		rc := redis.NewClient(redisOptions(cfg.redisConn))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Warnf("redis unreachable at startup, create dedupe degraded: %v", err)
		}
		cancel()
		deduper = api.NewRedisDeduper(rc, cfg.deduperTTL)
	} else {
		log.Info("REDIS_CONNECTION_STRING not set, create dedupe disabled")
	}

	auth, err := newAuth(cfg)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddleware("taskboard"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, store, auth, deduper, events, logger)

	log.WithFields(log.Fields{"addr": cfg.listenAddr, "store": cfg.storeDriver}).Info("taskboard starting")
	e.Logger.Fatal(e.Start(cfg.listenAddr))
}

func openStore(cfg config, logger *log.Logger) (domain.Store, error) {
	switch cfg.storeDriver {
	case driverPostgres:
		return sqlstore.Open(cfg.databaseURL, logger)
	case driverTables:
		return tablestore.New(cfg.storageConn, cfg.boardsTable, cfg.tasksTable, cfg.usersTable)
	case driverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return memstore.New(domain.DefaultBoards()...), nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.storeDriver)
}

func newAuth(cfg config) (*api.Auth, error) {
	if cfg.authMode == api.AuthModeHS256 {
		log.Warn("AUTH_MODE=hs256 accepts tokens signed with a shared secret")
		return api.NewAuth(api.AuthConfig{Mode: api.AuthModeHS256, SharedSecret: []byte(cfg.authSecret), Audience: cfg.auth0Audience})
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.auth0Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval: cfg.jwksCacheTTL,
		RefreshErrorHandler: func(err error) {
			log.Errorf("jwks refresh: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(api.AuthConfig{
		Mode:        api.AuthModeJWKS,
		JWKS:        jwks,
		Audience:    cfg.auth0Audience,
		Issuer:      "https://" + cfg.auth0Domain + "/",
		KeyCacheTTL: cfg.jwksCacheTTL,
	})
}
