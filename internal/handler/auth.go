package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/quiet-hours/internal/auth"
	"github.com/sakif/quiet-hours/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler manages password accounts, the GitHub OAuth flow and the
// session cookie.
//
//   - HandleRegister       → create a password account and sign in
//   - HandleLogin          → check email and password, set the cookie
//   - HandleLogout         → clear the cookie
//   - HandleGitHubLogin    → redirect the browser to GitHub
//   - HandleGitHubCallback → exchange the code, provision the profile, sign in
//   - HandleMe             → return the signed-in profile
//
// github is nil when GitHub credentials are not configured; the server
// does not register the GitHub routes in that case.
type AuthHandler struct {
	accounts     *service.AuthService
	github       *auth.GitHubProvider
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthHandler(
	accounts *service.AuthService,
	github *auth.GitHubProvider,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		github:       github,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email":"ada@example.com","password":"...","fullName":"Ada"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.accounts.SessionTTL(), h.cookieSecure)
	writeJSON(w, http.StatusCreated, res.Profile)
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.accounts.SessionTTL(), h.cookieSecure)
	writeJSON(w, http.StatusOK, res.Profile)
}

// HandleLogout clears the session cookie. Tokens are stateless, so an
// already-issued token stays valid until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieSecure)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// The random state is kept in a short-lived HttpOnly cookie and checked on
// the callback, so a callback this server did not start is rejected.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter against the cookie
//  2. Exchange the code for the GitHub user and a verified email
//  3. Create or link the profile
//  4. Set the session cookie and redirect to the dashboard
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrNoVerifiedEmail) {
			h.logger.Info("auth callback: GitHub account has no verified email")
			http.Redirect(w, r, "/?auth=noemail", http.StatusSeeOther)
			return
		}
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	res, err := h.accounts.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: provisioning profile failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.accounts.SessionTTL(), h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	profile, err := h.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
