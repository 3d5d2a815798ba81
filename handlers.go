package otherus

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
)

type registerRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	DisplayName string   `json:"display_name"`
	Bio         string   `json:"bio"`
	Interests   []string `json:"interests"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateRequest struct {
	DisplayName *string   `json:"display_name"`
	Bio         *string   `json:"bio"`
	Interests   *[]string `json:"interests"`
	AvatarURL   *string   `json:"avatar_url"`
	Location    *string   `json:"location"`
	Website     *string   `json:"website"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newTokenResponse(token string, user *User) tokenResponse {
	return tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorKind(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	token, user, err := s.Auth.Register(r.Context(), Registration{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Interests:   req.Interests,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	registrations.Inc()
	s.writeJSON(w, http.StatusCreated, newTokenResponse(token, user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorKind(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	token, user, err := s.Auth.Login(r.Context(), req.Email, req.Password)
	recordLogin("password", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newTokenResponse(token, user))
}

func (s *Server) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	authURL, state, err := s.Auth.OAuthStart(r.Context(), provider)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": authURL,
		"state":    state,
	})
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	token, _, err := s.Auth.OAuthCallback(r.Context(), provider, code, state)
	recordLogin(provider, err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Hand the token to the client's local callback receiver.
	target := s.ClientCallbackURL + "?" + url.Values{
		"token":    []string{token},
		"provider": []string{provider},
	}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	s.writeJSON(w, http.StatusOK, ownProfile(user))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorKind(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	updated, err := s.Auth.UpdateProfile(r.Context(), user.ID, ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Interests:   req.Interests,
		AvatarURL:   req.AvatarURL,
		Location:    req.Location,
		Website:     req.Website,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ownProfile(updated))
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := s.Auth.DeleteAccount(r.Context(), user.ID); err != nil {
		s.writeError(w, err)
		return
	}
	accountDeletions.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := s.Auth.GetProfile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	results, err := s.Auth.SearchUsers(r.Context(), user.ID, r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownProfile is the full profile a user sees of themselves: everything
// except the password hash.
func ownProfile(user *User) User {
	u := *user
	u.PasswordHash = ""
	return u
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps the failure taxonomy onto HTTP statuses and
// machine-readable kinds. Anything outside the taxonomy is a store or
// internal failure: authentication fails closed with a 500 and no
// internal detail crosses the boundary.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		s.writeErrorKind(w, http.StatusConflict, "duplicate_email", ErrDuplicateEmail.Error())
	case errors.Is(err, ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.writeErrorKind(w, http.StatusUnauthorized, "invalid_credentials", ErrInvalidCredentials.Error())
	case errors.Is(err, ErrWeakPassword):
		s.writeErrorKind(w, http.StatusBadRequest, "weak_password", ErrWeakPassword.Error())
	case errors.Is(err, ErrInvalidEmail):
		s.writeErrorKind(w, http.StatusBadRequest, "invalid_email", ErrInvalidEmail.Error())
	case errors.Is(err, ErrShortQuery):
		s.writeErrorKind(w, http.StatusBadRequest, "invalid_query", ErrShortQuery.Error())
	case errors.Is(err, ErrInvalidState):
		s.writeErrorKind(w, http.StatusBadRequest, "invalid_state", ErrInvalidState.Error())
	case errors.Is(err, ErrProvider):
		s.writeErrorKind(w, http.StatusBadGateway, "provider_error", ErrProvider.Error())
	case errors.Is(err, ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.writeErrorKind(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized.Error())
	case errors.Is(err, ErrNotFound):
		s.writeErrorKind(w, http.StatusNotFound, "not_found", ErrNotFound.Error())
	default:
		slog.Error("internal error", "error", err)
		s.writeErrorKind(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func (s *Server) writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: kind, Message: message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
