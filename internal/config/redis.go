package config

// This file defines the Redis client constructor.  Redis holds all seat
// state, so a failed connection is an error for the caller.

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes how to reach Redis.
type RedisConfig struct {
	Addr                   string // host:port
	Password               string // optional password
	DB                     int    // database number; also selects the keyevent channel
	TLS                    bool   // connect over TLS
	ConfigureNotifications bool   // issue CONFIG SET notify-keyspace-events Ex on startup
}

// LoadRedisConfig reads Redis settings from the environment.
// Supported variables are:
//
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand (used when host/port are not both set)
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS when "true" or "1"
//	REDIS_CONFIGURE_NOTIFICATIONS – enable expiry notifications on startup (default true)
func LoadRedisConfig() RedisConfig {
	host := envStr("REDIS_HOST", "")
	port := envStr("REDIS_PORT", "")
	addr := envStr("REDIS_ADDR", "")
	switch {
	case host != "" && port != "":
		addr = host + ":" + port
	case addr != "":
	case host != "":
		addr = host + ":6379"
	default:
		addr = "localhost:6379"
	}
	return RedisConfig{
		Addr:                   addr,
		Password:               envStr("REDIS_PASSWORD", ""),
		DB:                     envInt("REDIS_DB", 0),
		TLS:                    envBool("REDIS_TLS", false),
		ConfigureNotifications: envBool("REDIS_CONFIGURE_NOTIFICATIONS", true),
	}
}

// NewRedisClient instantiates a Redis client and pings the server with a
// short timeout.  The client is closed and an error returned when the ping
// fails.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{ServerName: hostOf(cfg.Addr)}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func hostOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}
