package server

import (
	"net/http"

	"github.com/jrsteele09/dashboard-auth/guard"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteIndex+"{$}", s.IndexHandler())

	signedOut := s.HTMLMiddleWare(guard.RequireSignedOut(s.session))
	signedIn := s.HTMLMiddleWare(guard.RequireAuthenticated(s.session))

	// Signed-out pages
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), signedOut...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), signedOut...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.RegisterPageHandler(), signedOut...))
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterSubmissionHandler(), signedOut...))
	s.RegisterRouteHandler("GET "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordPageHandler(), signedOut...))

	// Dashboard
	for _, route := range []string{RouteDashboard, RouteUsers, RouteBusinessUnits, RouteActiveDirectories} {
		s.RegisterRouteHandler("GET "+route, ChainMiddleware(s.DashboardHandler(), signedIn...))
	}
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), signedIn...))

	// API routes
	s.RegisterRouteHandler("POST "+RouteAPILogin, ChainMiddleware(s.APILoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIRegister, ChainMiddleware(s.APIRegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPILogout, ChainMiddleware(s.APILogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.APISessionHandler(), s.APIMiddleware()...))
	if s.bearer != nil {
		s.RegisterRouteHandler("GET "+RouteAPIWhoAmI, ChainMiddleware(s.APIWhoAmIHandler(), s.APIMiddleware(s.RequireBearer())...))
	}

	if s.metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	}
}

// IndexHandler forwards / to wherever the route table says.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := guard.Resolve(r.URL.Path, s.session.IsAuthenticated())
		if !d.Allow {
			http.Redirect(w, r, d.RedirectTo, http.StatusFound)
			return
		}
		http.NotFound(w, r)
	}
}
