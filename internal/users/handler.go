package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vetcare-backend/internal/auth"
	"vetcare-backend/internal/httpx"
	"vetcare-backend/internal/media"
	"vetcare-backend/internal/middleware"
	"vetcare-backend/internal/transport"
	"vetcare-backend/internal/validation"
)

type Handler struct {
	service      *Service
	manager      *auth.Manager
	val          *validation.Validator
	log          *slog.Logger
	cookieSecure bool
	setupKey     string
}

func NewHandler(service *Service, manager *auth.Manager, val *validation.Validator, log *slog.Logger, cookieSecure bool, setupKey string) *Handler {
	return &Handler{
		service:      service,
		manager:      manager,
		val:          val,
		log:          log,
		cookieSecure: cookieSecure,
		setupKey:     setupKey,
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}

// authReady rejects session-issuing routes with a 503 when the JWT manager
// is not configured, mirroring middleware.RequireUser. Without it a register
// call would persist the account and then crash on token signing.
func (h *Handler) authReady(w http.ResponseWriter) bool {
	if h.manager == nil {
		transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	if !h.authReady(w) {
		return
	}
	var req RegisterRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("register: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("register: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.Register(ctx, req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			log.Warn("register: email taken")
			transport.WriteError(w, http.StatusConflict, "email already registered", nil)
			return
		}
		log.Error("register: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if err := h.issueSession(w, user); err != nil {
		log.Error("register: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("register: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	if !h.authReady(w) {
		return
	}
	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("login: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Warn("login: invalid credentials")
			transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		log.Error("login: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if err := h.issueSession(w, user); err != nil {
		log.Error("login: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("login: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	if !h.authReady(w) {
		return
	}
	cookie, err := r.Cookie(middleware.RefreshCookie)
	if err != nil || cookie.Value == "" {
		log.Warn("refresh: missing refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	claims, err := h.manager.ParseRefresh(cookie.Value)
	if err != nil {
		log.Warn("refresh: invalid refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// A deleted account stops refreshing the moment its access token expires.
	user, err := h.service.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("refresh: account gone", slog.String("user_id", claims.Subject))
			transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
			return
		}
		log.Error("refresh: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if err := h.issueSession(w, user); err != nil {
		log.Error("refresh: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("refresh: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	h.clearAuthCookies(w)
	log.Info("logout: ok")
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.GetByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		log.Error("me: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req UpdateProfileRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("profile update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("profile update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.UpdateProfile(ctx, ident.UserID, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "user not found", nil)
			return
		}
		log.Error("profile update: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("profile update: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) SetPhoto(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req PhotoRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("profile photo: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("profile photo: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	user, err := h.service.SetPhoto(ctx, ident.UserID, req.Data)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			transport.WriteError(w, http.StatusNotFound, "user not found", nil)
		case errors.Is(err, media.ErrEmptyImage):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"data": "required"})
		case errors.Is(err, media.ErrUploadFailed):
			log.Error("profile photo: upload failed", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadGateway, "image upload failed", nil)
		default:
			log.Error("profile photo: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("profile photo: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req RequestResetRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("password reset request: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("password reset request: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	// The code travels through an external mail call.
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := h.service.RequestPasswordReset(ctx, req.Email); err != nil {
		log.Error("password reset request: failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "reset request failed", nil)
		return
	}

	log.Info("password reset request: accepted")
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req ConfirmResetRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("password reset confirm: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("password reset confirm: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.ConfirmPasswordReset(ctx, req.Email, req.Code, req.Password); err != nil {
		if errors.Is(err, ErrInvalidCode) {
			log.Warn("password reset confirm: invalid code")
			transport.WriteError(w, http.StatusUnauthorized, "invalid or expired code", nil)
			return
		}
		log.Error("password reset confirm: failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "reset failed", nil)
		return
	}

	log.Info("password reset confirm: ok")
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 50, 200)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, limit, offset)
	if err != nil {
		log.Error("admin users list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (h *Handler) AdminCreateStaff(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req CreateStaffRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin staff create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin staff create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	user, err := h.service.CreateStaff(ctx, req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			transport.WriteError(w, http.StatusConflict, "email already registered", nil)
			return
		}
		log.Error("admin staff create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin staff create: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusCreated, user)
}

// Bootstrap creates the first staff account. It needs the setup key and shuts
// itself off once any admin exists.
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	if h.setupKey == "" || r.Header.Get("X-Setup-Key") != h.setupKey {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req CreateStaffRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("staff bootstrap: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("staff bootstrap: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	exists, err := h.service.HasAdmin(ctx)
	if err != nil {
		log.Error("staff bootstrap: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if exists {
		log.Warn("staff bootstrap: already done")
		transport.WriteError(w, http.StatusConflict, "staff already bootstrapped", nil)
		return
	}

	user, err := h.service.CreateStaff(ctx, req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			transport.WriteError(w, http.StatusConflict, "email already registered", nil)
			return
		}
		log.Error("staff bootstrap: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("staff bootstrap: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) issueSession(w http.ResponseWriter, user User) error {
	access, err := h.manager.NewAccessToken(user.ID, user.Role)
	if err != nil {
		return err
	}
	refresh, err := h.manager.NewRefreshToken(user.ID, user.Role)
	if err != nil {
		return err
	}
	h.setAuthCookies(w, access, refresh)
	return nil
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.manager.AccessTTL.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.RefreshCookie,
		Value:    refresh,
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.manager.RefreshTTL.Seconds()),
	})
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	expire := time.Now().Add(-1 * time.Hour)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expire,
		MaxAge:   -1,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.RefreshCookie,
		Value:    "",
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expire,
		MaxAge:   -1,
	})
}
