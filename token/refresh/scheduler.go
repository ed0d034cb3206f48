// Package refresh keeps a session's access token alive by exchanging it
// shortly before it expires.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLead       = 60 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = 2 * time.Second
)

// Refresher exchanges a token for a rotated one. *token.Issuer satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, tok token.Token) (token.Token, error)
}

// Sink receives the outcome of a scheduled refresh. epoch is the value
// passed to Schedule so the receiver can drop results that belong to a
// session it has since left.
type Sink interface {
	Refreshed(ctx context.Context, epoch uint64, tok token.Token) error
	RefreshFailed(ctx context.Context, epoch uint64, err error)
}

type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func timeAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scheduler owns at most one pending refresh timer.
type Scheduler struct {
	refresher  Refresher
	sink       Sink
	lead       time.Duration
	attempts   uint
	retryDelay time.Duration
	nowFunc    func() time.Time
	afterFunc  AfterFunc
	logger     zerolog.Logger

	mu     sync.Mutex
	timer  Timer
	gen    uint64 // bumped whenever the pending timer is replaced or stopped
	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Scheduler)

// WithLead sets how long before access expiry the refresh fires.
func WithLead(lead time.Duration) Option {
	return func(s *Scheduler) {
		s.lead = lead
	}
}

// WithRetry sets how many times a transient refresh failure is attempted and
// the base delay between attempts.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(s *Scheduler) {
		if attempts == 0 {
			attempts = 1
		}
		s.attempts = attempts
		s.retryDelay = delay
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.nowFunc = now
	}
}

func WithAfterFunc(f AfterFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = f
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func NewScheduler(refresher Refresher, sink Sink, options ...Option) *Scheduler {
	s := &Scheduler{
		refresher:  refresher,
		sink:       sink,
		lead:       DefaultLead,
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
		nowFunc:    time.Now,
		afterFunc:  timeAfterFunc,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// FireAt is when a refresh of tok is due.
func (s *Scheduler) FireAt(tok token.Token) time.Time {
	return tok.AccessExpiresAt().Add(-s.lead)
}

// Schedule replaces any pending timer with one that refreshes tok at
// FireAt(tok). It arms nothing and returns false when that moment has
// already passed; the caller decides what a due token means.
func (s *Scheduler) Schedule(tok token.Token, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()

	delay := s.FireAt(tok).Sub(s.nowFunc())
	if delay <= 0 {
		return false
	}

	gen := s.gen
	ctx := s.ctx
	s.timer = s.afterFunc(delay, func() {
		s.fire(ctx, gen, tok, epoch)
	})

	s.logger.Debug().
		Dur("in", delay).
		Uint64("epoch", epoch).
		Msg("refresh scheduled")
	return true
}

// RefreshNow drops any pending timer and refreshes tok on a new goroutine.
func (s *Scheduler) RefreshNow(tok token.Token, epoch uint64) {
	s.mu.Lock()
	s.stopTimerLocked()
	ctx := s.ctx
	s.mu.Unlock()

	go s.run(ctx, tok, epoch)
}

// Stop cancels the pending timer and any refresh in flight. The scheduler
// stays usable; the next Schedule arms a new timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) stopTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire(ctx context.Context, gen uint64, tok token.Token, epoch uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.run(ctx, tok, epoch)
}

func (s *Scheduler) run(ctx context.Context, tok token.Token, epoch uint64) {
	refreshed, err := retry.DoWithData(
		func() (token.Token, error) {
			return s.refresher.Refresh(ctx, tok)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !autherrors.IsTerminalRefresh(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn().Err(err).Uint("attempt", n+1).Msg("token refresh failed, retrying")
		}),
	)

	if ctx.Err() != nil {
		s.logger.Debug().Uint64("epoch", epoch).Msg("refresh cancelled")
		return
	}

	if err != nil {
		s.logger.Error().Err(err).Uint64("epoch", epoch).Msg("token refresh failed")
		s.sink.RefreshFailed(ctx, epoch, err)
		return
	}

	if err := s.sink.Refreshed(ctx, epoch, refreshed); err != nil {
		s.logger.Error().Err(err).Uint64("epoch", epoch).Msg("applying refreshed token")
	}
}
