package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/dashboard-auth/auth"
	"github.com/jrsteele09/dashboard-auth/internal/config"
	"github.com/jrsteele09/dashboard-auth/internal/metrics"
	"github.com/jrsteele09/dashboard-auth/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Authenticator is the part of auth.Service the handlers call.
type Authenticator interface {
	Login(ctx context.Context, creds auth.Credentials) (auth.LoginResult, error)
	Register(ctx context.Context, reg auth.Registration) (auth.LoginResult, error)
}

// BearerVerifier resolves an access token to its username. *token.Issuer
// satisfies it.
type BearerVerifier interface {
	Subject(accessToken string) (string, error)
}

// Deps holds everything the dashboard needs besides configuration.
type Deps struct {
	Session *session.Store
	Auth    Authenticator
	Bearer  BearerVerifier
	Metrics *metrics.Metrics
}

// Server hosts the dashboard for the one session it is given.
type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	appName string
	mux     *http.ServeMux
	routes  []string
	session *session.Store
	auth    Authenticator
	bearer  BearerVerifier
	metrics *metrics.Metrics
	pages   *pages
	logger  zerolog.Logger
}

func New(c config.EnvConfig, deps Deps) (*Server, error) {
	if deps.Session == nil {
		return nil, fmt.Errorf("[Server New] session is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("[Server New] authenticator is required")
	}

	p, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}

	s := &Server{
		env:     c.GetEnv(),
		appName: c.GetAppName(),
		mux:     http.NewServeMux(),
		session: deps.Session,
		auth:    deps.Auth,
		bearer:  deps.Bearer,
		metrics: deps.Metrics,
		pages:   p,
		logger:  log.Logger,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Debug().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}
