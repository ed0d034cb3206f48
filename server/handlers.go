package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/dashboard-auth/auth"
	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/pkg/errors"
)

var sectionTitles = map[string]string{
	RouteDashboard:         "Overview",
	RouteUsers:             "Users",
	RouteBusinessUnits:     "Business units",
	RouteActiveDirectories: "Active directories",
}

func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, s.pages.login, http.StatusOK, nil)
	}
}

// LoginSubmissionHandler checks the form, signs the session in and goes to
// the dashboard. Failures re-render the form with the username kept.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.render(w, s.pages.login, http.StatusBadRequest, map[string]any{"Error": "Invalid form submission"})
			return
		}
		creds := auth.Credentials{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		}

		result, err := s.auth.Login(r.Context(), creds)
		if err == nil {
			err = s.session.SignIn(r.Context(), result)
		}
		if err != nil {
			status, message := errorResponse(err)
			s.render(w, s.pages.login, status, map[string]any{"Error": message, "Username": creds.Username})
			return
		}
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	}
}

func (s *Server) RegisterPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, s.pages.register, http.StatusOK, nil)
	}
}

// RegisterSubmissionHandler applies the form-level checks (minimum length,
// confirmation) before calling Register.
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.render(w, s.pages.register, http.StatusBadRequest, map[string]any{"Error": "Invalid form submission"})
			return
		}
		reg := auth.Registration{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
			Email:    r.PostFormValue("email"),
		}
		data := map[string]any{"Username": reg.Username, "Email": reg.Email}

		if reg.Password != r.PostFormValue("confirm_password") {
			data["Error"] = "Passwords do not match"
			s.render(w, s.pages.register, http.StatusBadRequest, data)
			return
		}
		if err := auth.ValidatePasswordLength(reg.Password, auth.MinPasswordLength); err != nil {
			data["Error"] = "Password must be at least 6 characters long"
			s.render(w, s.pages.register, http.StatusBadRequest, data)
			return
		}

		result, err := s.auth.Register(r.Context(), reg)
		if err == nil {
			err = s.session.SignIn(r.Context(), result)
		}
		if err != nil {
			status, message := errorResponse(err)
			data["Error"] = message
			s.render(w, s.pages.register, status, data)
			return
		}
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	}
}

func (s *Server) ForgotPasswordPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, s.pages.forgotPassword, http.StatusOK, nil)
	}
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"Section":  sectionTitles[r.URL.Path],
			"Username": s.session.State().Username,
		}
		if tok := s.session.Token(); tok != nil {
			data["Expires"] = tok.AccessExpiresAt().Format(time.Kitchen)
		}
		s.render(w, s.pages.dashboard, http.StatusOK, data)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.session.Logout(r.Context()); err != nil {
			s.logger.Error().Err(err).Msg("logout")
		}
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

// errorResponse maps a login or registration failure to what the user sees.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, autherrors.ErrValidation):
		return http.StatusBadRequest, "Username and password are required"
	case errors.Is(err, autherrors.ErrAuthenticationFailed):
		return http.StatusUnauthorized, autherrors.ErrAuthenticationFailed.Error()
	case errors.Is(err, autherrors.ErrDuplicateUser):
		return http.StatusConflict, autherrors.ErrDuplicateUser.Error()
	default:
		return http.StatusServiceUnavailable, "Login service unavailable, please try again"
	}
}
