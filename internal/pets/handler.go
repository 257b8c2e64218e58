package pets

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vetcare-backend/internal/httpx"
	"vetcare-backend/internal/media"
	"vetcare-backend/internal/middleware"
	"vetcare-backend/internal/transport"
	"vetcare-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{service: service, val: val, log: log}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("pets create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("pets create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	pet, err := h.service.Create(ctx, ident.UserID, req)
	if err != nil {
		log.Error("pets create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("pets create: ok", slog.String("pet_id", pet.ID))
	transport.WriteJSON(w, http.StatusCreated, pet)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.List(ctx, ident.UserID)
	if err != nil {
		log.Error("pets list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pet, err := h.service.Get(ctx, ident.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writePetError(w, log, "pets get", err)
		return
	}

	transport.WriteJSON(w, http.StatusOK, pet)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req UpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("pets update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("pets update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	pet, err := h.service.Update(ctx, ident.UserID, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writePetError(w, log, "pets update", err)
		return
	}

	log.Info("pets update: ok", slog.String("pet_id", pet.ID))
	transport.WriteJSON(w, http.StatusOK, pet)
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
		log.Warn("pets photo: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("pets photo: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	// Image uploads ride through an external CDN call.
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	pet, err := h.service.SetPhoto(ctx, ident.UserID, chi.URLParam(r, "id"), req.Data)
	if err != nil {
		if errors.Is(err, media.ErrEmptyImage) {
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"data": "required"})
			return
		}
		if errors.Is(err, media.ErrUploadFailed) {
			log.Error("pets photo: upload failed", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadGateway, "image upload failed", nil)
			return
		}
		h.writePetError(w, log, "pets photo", err)
		return
	}

	log.Info("pets photo: ok", slog.String("pet_id", pet.ID))
	transport.WriteJSON(w, http.StatusOK, pet)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, ident.UserID, chi.URLParam(r, "id")); err != nil {
		h.writePetError(w, log, "pets delete", err)
		return
	}

	log.Info("pets delete: ok", slog.String("pet_id", chi.URLParam(r, "id")))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) writePetError(w http.ResponseWriter, log *slog.Logger, action string, err error) {
	if errors.Is(err, ErrNotFound) {
		log.Warn(action + ": not found")
		transport.WriteError(w, http.StatusNotFound, "pet not found", nil)
		return
	}
	log.Error(action+": database error", slog.String("error", err.Error()))
	transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
}
