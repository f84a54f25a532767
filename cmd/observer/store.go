package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/observer/internal/config"
	"github.com/aretw0/observer/pkg/adapters/memory"
	"github.com/aretw0/observer/pkg/adapters/redis"
	"github.com/aretw0/observer/pkg/adapters/sqlite"
	"github.com/aretw0/observer/pkg/persistence/middleware"
	"github.com/aretw0/observer/pkg/ports"
	"github.com/aretw0/observer/pkg/session"
)

// openStore builds the configured store. Redis stores also coordinate
// writes across processes with a distributed lock.
func openStore(c config.Store, logger *slog.Logger) (ports.Store, []session.Option, error) {
	var (
		store ports.Store
		opts  []session.Option
	)
	switch strings.ToLower(c.Driver) {
	case config.DriverMemory:
		store = memory.NewStore()
	case config.DriverRedis:
		rs := redis.New(c.Addr, c.Password, c.DB, redis.WithPrefix(c.Prefix))
		opts = append(opts, session.WithLocker(redis.NewLocker(rs.Client(), c.Prefix)))
		store = rs
	case config.DriverSQLite:
		ss, err := sqlite.Open(c.Path)
		if err != nil {
			return nil, nil, err
		}
		store = ss
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", c.Driver)
	}

	mws := []middleware.Middleware{middleware.NewLoggingMiddleware(logger)}
	key, err := c.Key()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if key != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), opts, nil
}
