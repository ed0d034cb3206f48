package main

import (
	"context"

	"github.com/jrsteele09/dashboard-auth/auth"
	"github.com/jrsteele09/dashboard-auth/internal/config"
	"github.com/jrsteele09/dashboard-auth/internal/logging"
	"github.com/jrsteele09/dashboard-auth/internal/metrics"
	"github.com/jrsteele09/dashboard-auth/session"
	"github.com/jrsteele09/dashboard-auth/storage"
	"github.com/jrsteele09/dashboard-auth/storage/file"
	"github.com/jrsteele09/dashboard-auth/storage/memory"
	"github.com/jrsteele09/dashboard-auth/storage/redisstore"
	"github.com/jrsteele09/dashboard-auth/token"
	"github.com/jrsteele09/dashboard-auth/token/refresh"
	fakeuserrepo "github.com/jrsteele09/dashboard-auth/users/repofake"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// runtime is the object graph every command works against.
type runtime struct {
	cfg     config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	storage storage.Store
	issuer  *token.Issuer
	auth    *auth.Service
	session *session.Store
	closers []func() error
}

func newRuntime(cfg config.Config) (*runtime, error) {
	rt := &runtime{
		cfg:     cfg,
		logger:  logging.New(cfg),
		metrics: metrics.New(),
	}

	store, err := rt.openStorage()
	if err != nil {
		return nil, err
	}
	rt.storage = store
	rt.closers = append(rt.closers, store.Close)

	rt.issuer, err = token.NewIssuer(token.NewHMACSigner(cfg.GetTokenSecret()),
		token.WithTokenExpiry(cfg.GetAccessTokenExpiry(), cfg.GetRefreshTokenExpiry()),
		token.WithIssuerName(cfg.GetTokenIssuer()),
		token.WithLatency(cfg.GetRefreshLatency()),
	)
	if err != nil {
		rt.Close()
		return nil, errors.Wrap(err, "[newRuntime] token issuer")
	}

	users, err := fakeuserrepo.NewSeededUserRepo()
	if err != nil {
		rt.Close()
		return nil, errors.Wrap(err, "[newRuntime] user store")
	}

	rt.auth, err = auth.NewService(users, rt.issuer,
		auth.WithLatencies(cfg),
		auth.WithMetrics(rt.metrics),
		auth.WithLogger(rt.logger),
	)
	if err != nil {
		rt.Close()
		return nil, errors.Wrap(err, "[newRuntime] auth service")
	}

	rt.session = session.New(rt.storage, rt.auth, rt.issuer,
		session.WithLogger(rt.logger),
		session.WithMetrics(rt.metrics),
		session.WithSchedulerOptions(
			refresh.WithLead(cfg.GetRefreshLead()),
			refresh.WithRetry(cfg.GetRefreshAttempts(), cfg.GetRefreshRetryDelay()),
		),
	)
	return rt, nil
}

func (rt *runtime) openStorage() (storage.Store, error) {
	switch rt.cfg.GetStorageDriver() {
	case config.StorageMemory:
		return memory.NewBackend().Open(), nil
	case config.StorageFile:
		store, err := file.New(afero.NewOsFs(), rt.cfg.GetStoragePath(), file.WithLogger(rt.logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: rt.cfg.GetRedisAddr()})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, errors.Wrapf(err, "[openStorage] redis %s", rt.cfg.GetRedisAddr())
		}
		rt.closers = append(rt.closers, client.Close)
		return redisstore.New(client, rt.cfg.GetStorageNamespace(), redisstore.WithLogger(rt.logger)), nil
	default:
		return nil, errors.Errorf("[openStorage] unknown storage driver %q", rt.cfg.GetStorageDriver())
	}
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	if rt.session != nil {
		rt.session.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn().Err(err).Msg("closing runtime")
		}
	}
	rt.closers = nil
}
