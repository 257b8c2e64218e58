package messaging

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vetcare-backend/internal/httpx"
	"vetcare-backend/internal/middleware"
	"vetcare-backend/internal/transport"
	"vetcare-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

// NameDirectory resolves the display name stamped on new threads.
type NameDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type Handler struct {
	service   *Service
	directory NameDirectory
	val       *validation.Validator
	log       *slog.Logger
}

func NewHandler(service *Service, directory NameDirectory, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		directory: directory,
		val:       val,
		log:       log,
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req SendRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("messages send: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("messages send: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	name, err := h.directory.DisplayName(ctx, ident.UserID)
	if err != nil {
		log.Error("messages send: name lookup failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	thread, message, err := h.service.Send(ctx, Sender{ID: ident.UserID, Name: name, Role: RoleUser}, req.Body)
	if err != nil {
		h.writeSendError(w, log, "messages send", err)
		return
	}

	log.Info("messages send: ok",
		slog.String("thread_id", thread.ID),
		slog.String("message_id", message.ID),
	)
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"thread":  thread,
		"message": message,
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 100, 500)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	thread, messages, err := h.service.History(ctx, ident.UserID, limit, offset)
	if err != nil {
		log.Error("messages history: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"thread":   thread,
		"messages": messages,
	})
}

func (h *Handler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	thread, _, err := h.service.History(ctx, ident.UserID, 1, 0)
	if err != nil {
		log.Error("messages seen: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if thread.ID == "" {
		transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"seen": 0})
		return
	}

	count, err := h.service.MarkSeen(ctx, thread.ID, RoleUser)
	if err != nil {
		log.Error("messages seen: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"seen": count})
}

func (h *Handler) AdminListThreads(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 50, 200)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.service.ListThreads(ctx, limit, offset)
	if err != nil {
		log.Error("admin threads list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (h *Handler) AdminThreadHistory(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	threadID := chi.URLParam(r, "id")

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 100, 500)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	thread, messages, err := h.service.ThreadHistory(ctx, threadID, limit, offset)
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			log.Warn("admin thread history: not found", slog.String("thread_id", threadID))
			transport.WriteError(w, http.StatusNotFound, "thread not found", nil)
			return
		}
		log.Error("admin thread history: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"thread":   thread,
		"messages": messages,
	})
}

func (h *Handler) AdminReply(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	threadID := chi.URLParam(r, "id")

	var req SendRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin thread reply: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin thread reply: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	thread, message, err := h.service.Reply(ctx, threadID, Sender{ID: ident.UserID, Role: RoleStaff}, req.Body)
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			log.Warn("admin thread reply: not found", slog.String("thread_id", threadID))
			transport.WriteError(w, http.StatusNotFound, "thread not found", nil)
			return
		}
		h.writeSendError(w, log, "admin thread reply", err)
		return
	}

	log.Info("admin thread reply: ok",
		slog.String("thread_id", thread.ID),
		slog.String("message_id", message.ID),
	)
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"thread":  thread,
		"message": message,
	})
}

func (h *Handler) AdminMarkSeen(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	threadID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	count, err := h.service.MarkSeen(ctx, threadID, RoleStaff)
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			transport.WriteError(w, http.StatusNotFound, "thread not found", nil)
			return
		}
		log.Error("admin thread seen: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"seen": count})
}

func (h *Handler) writeSendError(w http.ResponseWriter, log *slog.Logger, action string, err error) {
	switch {
	case errors.Is(err, ErrEmptyBody):
		log.Warn(action + ": empty body")
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"body": "required"})
	case errors.Is(err, ErrWrongRole):
		log.Warn(action + ": wrong role")
		transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
	default:
		log.Error(action+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}
