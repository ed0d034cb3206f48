// Package redisstore shares a session through Redis so processes on
// different hosts stay in step. Each write bumps <ns>:version and is
// announced on <ns>:changes.
package redisstore

import (
	"context"
	"encoding/json"
	"sync"

	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/storage"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	client    *redis.Client
	namespace string
	origin    string
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
	subs   []*redis.PubSub
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New uses client without taking ownership of it; Close leaves it open.
func New(client *redis.Client, namespace string, options ...Option) *Store {
	s := &Store{
		client:    client,
		namespace: namespace,
		origin:    storage.NewOrigin(),
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) key(k string) string {
	return s.namespace + ":" + k
}

func (s *Store) versionKey() string {
	return s.namespace + ":version"
}

func (s *Store) channel() string {
	return s.namespace + ":changes"
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, autherrors.ErrClosed
	}
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[Store.Get] GET")
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.write(ctx, key, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, s.key(key), value, 0)
	})
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	changed := keys[0]
	if len(keys) > 1 {
		changed = ""
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.write(ctx, changed, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, full...)
	})
}

// Version is the current value of the shared write counter.
func (s *Store) Version(ctx context.Context) (uint64, error) {
	v, err := s.client.Get(ctx, s.versionKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "[Store.Version] GET")
	}
	return v, nil
}

func (s *Store) write(ctx context.Context, key string, apply func(pipe redis.Pipeliner)) error {
	if s.isClosed() {
		return autherrors.ErrClosed
	}

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		apply(pipe)
		incr = pipe.Incr(ctx, s.versionKey())
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[Store.write] MULTI")
	}

	payload, err := json.Marshal(storage.Change{
		Key:     key,
		Version: uint64(incr.Val()),
		Origin:  s.origin,
	})
	if err != nil {
		return errors.Wrap(err, "[Store.write] json.Marshal")
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		return errors.Wrap(err, "[Store.write] PUBLISH")
	}
	return nil
}

// Watch returns once the subscription is confirmed by the server, so writes
// made after it returns are never missed.
func (s *Store) Watch(fn func(storage.Change)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, autherrors.ErrClosed
	}

	ctx := context.Background()
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrap(err, "[Store.Watch] SUBSCRIBE")
	}
	s.subs = append(s.subs, sub)

	go func() {
		for msg := range sub.Channel() {
			var change storage.Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				s.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("ignoring malformed change")
				continue
			}
			if change.Origin == s.origin {
				continue
			}
			fn(change)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { _ = sub.Close() })
	}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, sub := range s.subs {
		_ = sub.Close()
	}
	s.subs = nil
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
