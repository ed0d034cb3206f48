package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/dashboard-auth/auth"
)

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorBody{Error: code, ErrorDescription: description})
}

func (s *Server) APILoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
			return
		}

		result, err := s.auth.Login(r.Context(), creds)
		if err == nil {
			err = s.session.SignIn(r.Context(), result)
		}
		if err != nil {
			status, message := errorResponse(err)
			writeJSONError(w, status, "login_failed", message)
			return
		}
		writeJSON(w, http.StatusOK, s.session.State())
	}
}

func (s *Server) APIRegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg auth.Registration
		if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
			return
		}

		result, err := s.auth.Register(r.Context(), reg)
		if err == nil {
			err = s.session.SignIn(r.Context(), result)
		}
		if err != nil {
			status, message := errorResponse(err)
			writeJSONError(w, status, "registration_failed", message)
			return
		}
		writeJSON(w, http.StatusCreated, s.session.State())
	}
}

func (s *Server) APILogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.session.Logout(r.Context()); err != nil {
			s.logger.Error().Err(err).Msg("logout")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) APISessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.session.State())
	}
}

// APIWhoAmIHandler echoes the username of the presented bearer token.
func (s *Server) APIWhoAmIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"username": usernameFromContext(r.Context())})
	}
}
