package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	driverPostgres = "postgres"
	driverTables   = "tables"
	driverMemory   = "memory"
)

type config struct {
	storeDriver string
	databaseURL string

	storageConn string
	boardsTable string
	tasksTable  string
	usersTable  string
	eventsQueue string

	redisConn  string
	deduperTTL time.Duration

	authMode      string
	auth0Domain   string
	auth0Audience string
	authSecret    string
	jwksCacheTTL  time.Duration

	listenAddr string
	debug      bool
	logFormat  string
}

// loadConfig reads the service configuration through getenv.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		storeDriver:   strings.ToLower(envOr(getenv, "STORE_DRIVER", driverPostgres)),
		databaseURL:   getenv("DATABASE_URL"),
		storageConn:   getenv("STORAGE_CONNECTION_STRING"),
		boardsTable:   envOr(getenv, "BOARDS_TABLE", "Boards"),
		tasksTable:    envOr(getenv, "TASKS_TABLE", "Tasks"),
		usersTable:    envOr(getenv, "USERS_TABLE", "Users"),
		eventsQueue:   getenv("TASK_EVENTS_QUEUE"),
		redisConn:     getenv("REDIS_CONNECTION_STRING"),
		authMode:      strings.ToLower(envOr(getenv, "AUTH_MODE", "jwks")),
		auth0Domain:   getenv("AUTH0_DOMAIN"),
		auth0Audience: getenv("AUTH0_AUDIENCE"),
		authSecret:    getenv("AUTH_SHARED_SECRET"),
		logFormat:     strings.ToLower(getenv("LOG_FORMAT")),
		listenAddr:    ":8080",
	}

	if v := getenv("LISTEN_ADDR"); v != "" {
		cfg.listenAddr = v
	} else if v := getenv("PORT"); v != "" {
		cfg.listenAddr = ":" + v
	}
	if v := getenv("DEBUG"); v != "" {
		dbg, err := strconv.ParseBool(v)
		if err != nil {
			return config{}, fmt.Errorf("invalid DEBUG: %w", err)
		}
		cfg.debug = dbg
	}

	var err error
	if cfg.deduperTTL, err = envDur(getenv, "DEDUPER_TTL", 24*time.Hour); err != nil {
		return config{}, err
	}
	if cfg.jwksCacheTTL, err = envDur(getenv, "JWKS_CACHE_TTL", 15*time.Minute); err != nil {
		return config{}, err
	}

	switch cfg.storeDriver {
	case driverPostgres:
		if cfg.databaseURL == "" {
			return config{}, errors.New("missing DATABASE_URL")
		}
	case driverTables:
		if cfg.storageConn == "" {
			return config{}, errors.New("missing STORAGE_CONNECTION_STRING")
		}
	case driverMemory:
	default:
		return config{}, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.storeDriver)
	}
	if cfg.eventsQueue != "" && cfg.storageConn == "" {
		return config{}, errors.New("TASK_EVENTS_QUEUE requires STORAGE_CONNECTION_STRING")
	}

	switch cfg.authMode {
	case "jwks":
		if cfg.auth0Domain == "" || cfg.auth0Audience == "" {
			return config{}, errors.New("missing Auth0 config")
		}
	case "hs256":
		if cfg.authSecret == "" {
			return config{}, errors.New("missing AUTH_SHARED_SECRET")
		}
	default:
		return config{}, fmt.Errorf("unsupported AUTH_MODE %q", cfg.authMode)
	}
	return cfg, nil
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func envDur(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return d, nil
}

// redisOptions accepts a redis:// URL or the "host:port,password=...,ssl=true"
// form used by managed Redis connection strings.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}
