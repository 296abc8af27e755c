package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/cart-keeper/internal/domain/cart"
	"github.com/xenking/cart-keeper/internal/storage/file"
	"github.com/xenking/cart-keeper/internal/storage/memory"
	"github.com/xenking/cart-keeper/internal/storage/mysql"
	"github.com/xenking/cart-keeper/internal/storage/postgres"
	"github.com/xenking/cart-keeper/internal/storage/redis"
)

// openStore builds the configured store. The returned close function
// releases its connections.
func openStore(ctx context.Context, lg *zap.Logger, cfg StoreConfig) (cart.Store, func(), error) {
	lg = lg.With(zap.String("driver", cfg.Driver))
	nop := func() {}

	switch cfg.Driver {
	case DriverMemory:
		lg.Warn("Cart is kept in memory and will not survive a restart")
		return memory.New(), nop, nil

	case DriverFile:
		s, err := file.New(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		lg.Info("Using file store", zap.String("dir", cfg.Dir))
		return s, nop, nil

	case DriverRedis:
		s, err := redis.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		lg.Info("Using redis store", zap.String("addr", cfg.RedisAddr))
		return s, func() { _ = s.Close() }, nil

	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		lg.Info("Using postgres store")
		return postgres.New(pool), pool.Close, nil

	case DriverMySQL:
		conn, err := mysql.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := mysql.RunMigrations(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		lg.Info("Using mysql store")
		s := mysql.New(conn)
		return s, func() { _ = s.Close() }, nil
	}
	return nil, nil, errors.Errorf("unknown store driver %q", cfg.Driver)
}
