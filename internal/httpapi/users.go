package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mingyuchen/activity-tracker-go/internal/obs"
	"github.com/mingyuchen/activity-tracker-go/password"
	"github.com/mingyuchen/activity-tracker-go/session"
	"github.com/mingyuchen/activity-tracker-go/user"
)

// Refresh-failure reason strings are part of the client contract; existing
// frontends match on them.
const (
	reasonRefreshMissing = "Refresh token missing from cookie"
	reasonRefreshInvalid = "Invalid refresh token claim or expired"
	reasonRefreshExpired = "Refresh token expired, please login again"
	reasonRefreshRevoked = "Invalid or revoked refresh token"
)

const minPasswordLength = 8

// CookieConfig describes the refresh-token cookie.
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
	MaxAge time.Duration
}

// UserHandler serves the session lifecycle endpoints.
type UserHandler struct {
	users   user.Store
	hasher  *password.Hasher
	issuer  *session.Issuer
	cookie  CookieConfig
	metrics *obs.AuthMetrics
	log     *zap.Logger
}

// NewUserHandler wires a UserHandler.
func NewUserHandler(users user.Store, hasher *password.Hasher, issuer *session.Issuer, cookie CookieConfig, metrics *obs.AuthMetrics, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{users: users, hasher: hasher, issuer: issuer, cookie: cookie, metrics: metrics, log: log}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Register creates a new identity. The response never echoes the password
// hash.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password too short")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.log.Error("hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	u := &user.User{Email: req.Email, PasswordHash: hash}
	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.log.Error("create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

// Login verifies credentials and hands out an access token plus the refresh
// cookie.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, err := h.issuer.Login(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUserNotFound):
			h.countLogin("not_found")
			writeError(w, http.StatusNotFound, "unknown email")
		case errors.Is(err, session.ErrBadCredentials):
			h.countLogin("bad_password")
			writeError(w, http.StatusUnauthorized, "bad credentials")
		default:
			h.log.Error("login", zap.Error(err))
			h.countLogin("error")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.countLogin("ok")
	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: pair.AccessToken, UserID: pair.UserID})
}

// Refresh rotates the refresh token presented in the cookie and mints a new
// access token.
func (h *UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := h.refreshFromCookie(r)
	if presented == "" {
		h.countRefresh("missing")
		writeError(w, http.StatusUnauthorized, reasonRefreshMissing)
		return
	}

	pair, err := h.issuer.Refresh(r.Context(), presented)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenInvalid):
			h.countRefresh("invalid")
			writeError(w, http.StatusUnauthorized, reasonRefreshInvalid)
		case errors.Is(err, session.ErrTokenExpired):
			h.countRefresh("expired")
			h.clearRefreshCookie(w)
			writeError(w, http.StatusUnauthorized, reasonRefreshExpired)
		case errors.Is(err, session.ErrTokenRevoked):
			h.countRefresh("revoked")
			h.clearRefreshCookie(w)
			writeError(w, http.StatusUnauthorized, reasonRefreshRevoked)
		default:
			h.log.Error("refresh", zap.Error(err))
			h.countRefresh("error")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.countRefresh("ok")
	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: pair.AccessToken})
}

// Logout revokes the presented refresh token and clears the cookie. It never
// fails.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	_ = h.issuer.Logout(r.Context(), h.refreshFromCookie(r))
	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *UserHandler) refreshFromCookie(r *http.Request) string {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *UserHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     h.cookie.Path,
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *UserHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *UserHandler) countLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.Logins.WithLabelValues(outcome).Inc()
	}
}

func (h *UserHandler) countRefresh(outcome string) {
	if h.metrics != nil {
		h.metrics.Refreshes.WithLabelValues(outcome).Inc()
	}
}
