package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/dashboard-auth/internal/config"
	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/internal/metrics"
	"github.com/jrsteele09/dashboard-auth/internal/utils"
	"github.com/jrsteele09/dashboard-auth/token"
	"github.com/jrsteele09/dashboard-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TokenIssuer mints tokens for a signed-in user and invalidates them on
// logout. *token.Issuer satisfies it.
type TokenIssuer interface {
	Issue(username string) (token.Token, error)
	Revoke(tok token.Token) error
}

// Service checks credentials against the user store and issues tokens.
// Every call waits for a configurable latency first so callers see the same
// timing they would against a remote identity service.
type Service struct {
	users           users.UserRepo
	issuer          TokenIssuer
	loginLatency    time.Duration
	registerLatency time.Duration
	logoutLatency   time.Duration
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

func WithLatencies(c config.LatencyConfig) ServiceOption {
	return func(s *Service) {
		s.loginLatency = c.GetLoginLatency()
		s.registerLatency = c.GetRegisterLatency()
		s.logoutLatency = c.GetLogoutLatency()
	}
}

func WithLoginLatency(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.loginLatency = d
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(userRepo users.UserRepo, issuer TokenIssuer, options ...ServiceOption) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewService] token issuer is required")
	}

	s := &Service{
		users:  userRepo,
		issuer: issuer,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login resolves when the username exists and the password matches its
// stored hash. Unknown users and wrong passwords fail with the same
// ErrAuthenticationFailed so the two cannot be told apart. Failures of the
// lookup itself surface as ErrServiceUnavailable with the cause logged.
func (s *Service) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	if err := utils.Sleep(ctx, s.loginLatency); err != nil {
		return LoginResult{}, errors.Wrap(err, "[Service.Login] waiting for identity service")
	}

	if err := creds.Validate(); err != nil {
		s.metrics.Login(metrics.ResultFailure)
		return LoginResult{}, err
	}

	user, err := s.verify(creds)
	if err != nil {
		s.metrics.Login(metrics.ResultFailure)
		if errors.Is(err, autherrors.ErrAuthenticationFailed) {
			return LoginResult{}, autherrors.ErrAuthenticationFailed
		}
		s.logger.Error().Err(err).Str("username", creds.Username).Msg("login lookup failed")
		return LoginResult{}, autherrors.ErrServiceUnavailable
	}

	tok, err := s.issuer.Issue(user.Username)
	if err != nil {
		s.metrics.Login(metrics.ResultFailure)
		s.logger.Error().Err(err).Str("username", user.Username).Msg("issuing token")
		return LoginResult{}, autherrors.ErrServiceUnavailable
	}

	s.metrics.Login(metrics.ResultSuccess)
	s.logger.Info().Str("username", user.Username).Msg("login succeeded")
	return LoginResult{Username: user.Username, Token: tok}, nil
}

// verify never lets a panic in the backing store escape as anything but
// ErrServiceUnavailable.
func (s *Service) verify(creds Credentials) (user *users.User, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(autherrors.ErrServiceUnavailable, fmt.Sprintf("[Service.verify] panic: %v", r))
		}
	}()

	user, err = s.users.GetByUsername(creds.Username)
	if errors.Is(err, autherrors.ErrNotFound) {
		return nil, autherrors.ErrAuthenticationFailed
	}
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrServiceUnavailable, "[Service.verify] GetByUsername: "+err.Error())
	}
	if !user.CheckPassword(creds.Password) {
		return nil, autherrors.ErrAuthenticationFailed
	}
	return user, nil
}

// Register appends a new user and signs them in. Missing fields fail with
// ErrValidation before the store is consulted; an existing username fails
// with ErrDuplicateUser and the store is left unchanged.
func (s *Service) Register(ctx context.Context, reg Registration) (LoginResult, error) {
	if err := utils.Sleep(ctx, s.registerLatency); err != nil {
		return LoginResult{}, errors.Wrap(err, "[Service.Register] waiting for identity service")
	}

	result, err := s.register(reg)
	if err != nil {
		s.metrics.Registration(metrics.ResultFailure)
		return LoginResult{}, err
	}
	s.metrics.Registration(metrics.ResultSuccess)
	s.logger.Info().Str("username", result.Username).Msg("user registered")
	return result, nil
}

func (s *Service) register(reg Registration) (LoginResult, error) {
	if err := reg.Validate(); err != nil {
		return LoginResult{}, err
	}

	exists, err := s.users.Exists(reg.Username)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "[Service.Register] Exists")
	}
	if exists {
		return LoginResult{}, autherrors.ErrDuplicateUser
	}

	hash, err := users.HashPassword(reg.Password)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "[Service.Register] HashPassword")
	}

	user := &users.User{
		Username:     reg.Username,
		Email:        strings.TrimSpace(reg.Email),
		PasswordHash: hash,
	}
	if err := s.users.Add(user); err != nil {
		if errors.Is(err, autherrors.ErrDuplicateUser) {
			return LoginResult{}, autherrors.ErrDuplicateUser
		}
		return LoginResult{}, errors.Wrap(err, "[Service.Register] Add")
	}

	tok, err := s.issuer.Issue(user.Username)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "[Service.Register] Issue")
	}
	return LoginResult{Username: user.Username, Token: tok}, nil
}

// Logout tells the identity service the token is no longer in use.
func (s *Service) Logout(ctx context.Context, tok token.Token) error {
	if err := utils.Sleep(ctx, s.logoutLatency); err != nil {
		return errors.Wrap(err, "[Service.Logout] waiting for identity service")
	}
	if err := s.issuer.Revoke(tok); err != nil {
		return errors.Wrap(err, "[Service.Logout] Revoke")
	}
	s.metrics.Logout()
	return nil
}
