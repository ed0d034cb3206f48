// Package session holds the client's view of who is signed in. It is
// backed by a storage.Store shared with other instances, keeps the access
// token fresh through a refresh.Scheduler and resynchronises whenever
// another instance writes.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/dashboard-auth/auth"
	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/internal/metrics"
	"github.com/jrsteele09/dashboard-auth/storage"
	"github.com/jrsteele09/dashboard-auth/token"
	"github.com/jrsteele09/dashboard-auth/token/refresh"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is Unauthenticated when Authenticated is false; Username is then empty.
type State struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// Reader is all a route guard may see of a session.
type Reader interface {
	IsAuthenticated() bool
}

// Remote is the identity service told about logouts. *auth.Service
// satisfies it.
type Remote interface {
	Logout(ctx context.Context, tok token.Token) error
}

var (
	_ Reader       = (*Store)(nil)
	_ refresh.Sink = (*Store)(nil)
)

type Store struct {
	storage   storage.Store
	remote    Remote
	scheduler *refresh.Scheduler
	nowFunc   func() time.Time
	logger    zerolog.Logger
	metrics   *metrics.Metrics

	mu             sync.RWMutex
	state          State
	tok            *token.Token
	epoch          uint64
	lastVersion    uint64
	lastGeneration string
	observers      map[int]func(State)
	nextObs        int
	cancelWatch    func()
}

type Option func(*options)

type options struct {
	nowFunc          func() time.Time
	logger           zerolog.Logger
	metrics          *metrics.Metrics
	schedulerOptions []refresh.Option
}

func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSchedulerOptions configures the refresh scheduler the Store owns.
func WithSchedulerOptions(opts ...refresh.Option) Option {
	return func(o *options) {
		o.schedulerOptions = append(o.schedulerOptions, opts...)
	}
}

// New returns an unauthenticated Store. Call Initialize (or Start) to load
// whatever session the backing storage already holds.
func New(store storage.Store, remote Remote, refresher refresh.Refresher, opts ...Option) *Store {
	o := options{
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		storage:   store,
		remote:    remote,
		nowFunc:   o.nowFunc,
		logger:    o.logger,
		metrics:   o.metrics,
		observers: make(map[int]func(State)),
	}
	schedulerOptions := append([]refresh.Option{
		refresh.WithNowFunc(o.nowFunc),
		refresh.WithLogger(o.logger),
	}, o.schedulerOptions...)
	s.scheduler = refresh.NewScheduler(refresher, s, schedulerOptions...)
	return s
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Authenticated
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns a copy of the current token, or nil.
func (s *Store) Token() *token.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tok == nil {
		return nil
	}
	tok := *s.tok
	return &tok
}

// Epoch identifies the current sign-in. Refresh results carrying an older
// epoch are discarded.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Subscribe registers fn for state transitions. fn is never called with
// the Store's lock held.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Start loads the persisted session and follows writes made by other
// instances until Close.
func (s *Store) Start(ctx context.Context) error {
	if err := s.Initialize(ctx); err != nil {
		return err
	}
	cancel, err := s.storage.Watch(s.HandleChange)
	if err != nil {
		return errors.Wrap(err, "[Store.Start] Watch")
	}
	s.mu.Lock()
	s.cancelWatch = cancel
	s.mu.Unlock()
	return nil
}

// Close stops following storage and cancels any pending refresh. Persisted
// values are left alone.
func (s *Store) Close() {
	s.mu.Lock()
	cancel := s.cancelWatch
	s.cancelWatch = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.scheduler.Stop()
}

// Initialize derives the state from storage. A valid token with a username
// authenticates and arms the refresh timer; anything else clears both keys.
func (s *Store) Initialize(ctx context.Context) error {
	return s.transition(func() error {
		return s.loadLocked(ctx, true)
	})
}

// resync is Initialize without the cleanup. Another instance may be half
// way through a sign-in, so its partial writes must not be deleted.
func (s *Store) resync(ctx context.Context) error {
	return s.transition(func() error {
		return s.loadLocked(ctx, false)
	})
}

func (s *Store) loadLocked(ctx context.Context, cleanup bool) error {
	raw, hasToken, err := s.storage.Get(ctx, storage.KeyToken)
	if err != nil {
		return errors.Wrap(err, "[Store.Initialize] Get token")
	}
	username, hasUsername, err := s.storage.Get(ctx, storage.KeyUsername)
	if err != nil {
		return errors.Wrap(err, "[Store.Initialize] Get username")
	}

	var tok *token.Token
	if hasToken {
		if tok, err = token.Decode(raw); err != nil {
			s.logger.Warn().Err(err).Msg("discarding unreadable token")
		}
	}

	if !token.IsValid(tok, s.nowFunc()) || username == "" {
		if cleanup && (hasToken || hasUsername) {
			if err := s.storage.Delete(ctx, storage.KeyToken, storage.KeyUsername); err != nil {
				return errors.Wrap(err, "[Store.Initialize] Delete")
			}
		}
		s.clearLocked()
		return nil
	}

	changed := s.tok == nil || s.tok.RefreshToken != tok.RefreshToken
	if changed {
		s.epoch++
		s.tok = tok
	}
	s.state = State{Authenticated: true, Username: username}

	if changed || !s.scheduler.Pending() {
		s.armLocked(*tok, true)
	}
	return nil
}

// SetAuthenticated records a transition decided by the caller. Signing in
// requires a username; without one the call fails with
// ErrInvariantViolation and neither state nor storage changes.
func (s *Store) SetAuthenticated(ctx context.Context, authenticated bool, username string) error {
	if authenticated && username == "" {
		s.logger.Error().Err(autherrors.ErrInvariantViolation).Msg("SetAuthenticated")
		return autherrors.ErrInvariantViolation
	}

	return s.transition(func() error {
		if !authenticated {
			if err := s.storage.Delete(context.WithoutCancel(ctx), storage.KeyUsername); err != nil {
				return errors.Wrap(err, "[Store.SetAuthenticated] Delete")
			}
			if s.state.Authenticated {
				s.epoch++
				s.scheduler.Stop()
			}
			s.state = State{}
			return nil
		}

		if err := s.storage.Set(ctx, storage.KeyUsername, username); err != nil {
			return errors.Wrap(err, "[Store.SetAuthenticated] Set")
		}
		s.state = State{Authenticated: true, Username: username}
		return nil
	})
}

// SignIn persists the token of a successful login or registration, arms
// its refresh and then marks the session authenticated, in that order.
func (s *Store) SignIn(ctx context.Context, result auth.LoginResult) error {
	if result.Username == "" {
		return s.SetAuthenticated(ctx, true, "")
	}

	raw, err := result.Token.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.storage.Set(ctx, storage.KeyToken, raw); err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "[Store.SignIn] Set token")
	}
	s.epoch++
	tok := result.Token
	s.tok = &tok
	s.armLocked(tok, false)
	s.mu.Unlock()

	if err := s.SetAuthenticated(ctx, true, result.Username); err != nil {
		s.abandonSignIn(ctx)
		return err
	}
	return nil
}

// abandonSignIn undoes the token write and timer of a SignIn whose
// username could not be stored.
func (s *Store) abandonSignIn(ctx context.Context) {
	err := s.transition(func() error {
		err := s.storage.Delete(context.WithoutCancel(ctx), storage.KeyToken, storage.KeyUsername)
		s.clearLocked()
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("rolling back failed sign-in")
	}
}

// Logout tells the identity service, then clears the session whatever it
// answered.
func (s *Store) Logout(ctx context.Context) error {
	if tok := s.Token(); tok != nil && s.remote != nil {
		if err := s.remote.Logout(ctx, *tok); err != nil {
			s.logger.Warn().Err(err).Msg("remote logout failed, clearing local session anyway")
		}
	}

	err := s.transition(func() error {
		err := s.storage.Delete(context.WithoutCancel(ctx), storage.KeyToken, storage.KeyUsername, storage.KeyRefreshToken)
		s.clearLocked()
		if err != nil {
			return errors.Wrap(err, "[Store.Logout] Delete")
		}
		return nil
	})
	s.metrics.Logout()
	s.logger.Info().Msg("logged out")
	return err
}

// HandleChange resynchronises after another instance wrote to storage.
// Changes from this instance and versions already seen are ignored.
func (s *Store) HandleChange(change storage.Change) {
	switch change.Key {
	case "", storage.KeyToken, storage.KeyUsername, storage.KeyRefreshToken:
	default:
		return
	}
	if change.Origin != "" && change.Origin == s.storage.Origin() {
		s.metrics.StorageEvent("ignored")
		return
	}

	s.mu.Lock()
	// A new generation or an unversioned change means the medium's counter
	// may have restarted.
	if change.Version == 0 || change.Generation != s.lastGeneration {
		s.lastGeneration = change.Generation
		s.lastVersion = 0
	}
	if change.Version != 0 && change.Version <= s.lastVersion {
		s.mu.Unlock()
		s.metrics.StorageEvent("ignored")
		return
	}
	if change.Version > s.lastVersion {
		s.lastVersion = change.Version
	}
	s.mu.Unlock()

	s.metrics.StorageEvent("applied")
	if err := s.resync(context.Background()); err != nil {
		s.logger.Error().Err(err).Uint64("version", change.Version).Msg("resynchronising session")
	}
}

// Refreshed persists a rotated token and re-arms the timer for it.
func (s *Store) Refreshed(ctx context.Context, epoch uint64, tok token.Token) error {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.metrics.Refresh(metrics.ResultStale)
		s.logger.Debug().Uint64("epoch", epoch).Uint64("current", s.epoch).Msg("dropping stale refresh")
		return nil
	}

	raw, err := tok.Encode()
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, storage.KeyToken, raw); err != nil {
		s.metrics.Refresh(metrics.ResultFailure)
		return errors.Wrap(err, "[Store.Refreshed] Set token")
	}
	s.tok = &tok
	s.metrics.Refresh(metrics.ResultSuccess)
	s.armLocked(tok, false)
	return nil
}

// RefreshFailed ends the session unless another instance has already
// rotated the token, in which case that token is adopted.
func (s *Store) RefreshFailed(ctx context.Context, epoch uint64, cause error) {
	ctx = context.WithoutCancel(ctx)

	s.mu.RLock()
	stale := epoch != s.epoch
	current := s.tok
	s.mu.RUnlock()
	if stale {
		s.metrics.Refresh(metrics.ResultStale)
		return
	}
	s.metrics.Refresh(metrics.ResultFailure)

	if s.rotatedElsewhere(ctx, current) {
		s.logger.Info().Msg("token was rotated by another instance, adopting it")
		if err := s.Initialize(ctx); err != nil {
			s.logger.Error().Err(err).Msg("adopting rotated token")
		}
		return
	}

	err := s.transition(func() error {
		if epoch != s.epoch {
			return nil
		}
		s.logger.Warn().Err(cause).Msg("token refresh failed, signing out")
		err := s.storage.Delete(ctx, storage.KeyToken, storage.KeyUsername, storage.KeyRefreshToken)
		s.clearLocked()
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("clearing session after refresh failure")
	}
}

func (s *Store) rotatedElsewhere(ctx context.Context, current *token.Token) bool {
	if current == nil {
		return false
	}
	raw, ok, err := s.storage.Get(ctx, storage.KeyToken)
	if err != nil || !ok {
		return false
	}
	stored, err := token.Decode(raw)
	if err != nil {
		return false
	}
	return stored.RefreshToken != current.RefreshToken && token.IsValid(stored, s.nowFunc())
}

// armLocked schedules the refresh of tok. A token already inside the lead
// window is refreshed at once when dueNow is set, otherwise left to expire.
func (s *Store) armLocked(tok token.Token, dueNow bool) {
	if s.scheduler.Schedule(tok, s.epoch) {
		return
	}
	if dueNow {
		s.scheduler.RefreshNow(tok, s.epoch)
		return
	}
	s.logger.Warn().Time("expires", tok.AccessExpiresAt()).Msg("token expires within the refresh lead, not scheduling")
}

func (s *Store) clearLocked() {
	if s.state.Authenticated || s.tok != nil {
		s.epoch++
	}
	s.scheduler.Stop()
	s.tok = nil
	s.state = State{}
}

// transition runs fn under the lock and notifies observers if the state
// moved.
func (s *Store) transition(fn func() error) error {
	s.mu.Lock()
	prev := s.state
	err := fn()
	next := s.state
	var observers []func(State)
	if prev != next {
		for _, o := range s.observers {
			observers = append(observers, o)
		}
	}
	s.mu.Unlock()

	if prev != next {
		s.metrics.SetAuthenticated(next.Authenticated)
		s.logger.Debug().
			Bool("authenticated", next.Authenticated).
			Str("username", next.Username).
			Msg("session state changed")
	}
	for _, o := range observers {
		o(next)
	}
	return err
}
