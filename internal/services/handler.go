package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vetcare-backend/internal/cache"
	"vetcare-backend/internal/httpx"
	"vetcare-backend/internal/middleware"
	"vetcare-backend/internal/transport"
	"vetcare-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

const listCacheKey = "services:all"

type Handler struct {
	catalog  *Catalog
	val      *validation.Validator
	log      *slog.Logger
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewHandler(catalog *Catalog, val *validation.Validator, log *slog.Logger, c cache.Cache, cacheTTL time.Duration) *Handler {
	return &Handler{
		catalog:  catalog,
		val:      val,
		log:      log,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	if h.cache != nil {
		if cached, ok, err := h.cache.Get(r.Context(), listCacheKey); err == nil && ok {
			log.Info("services: cache hit")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.catalog.List(ctx)
	if err != nil {
		log.Error("services: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	response := map[string]interface{}{"services": items}
	if payload, err := json.Marshal(response); err == nil && h.cache != nil {
		_ = h.cache.Set(r.Context(), listCacheKey, payload, h.cacheTTL)
	}

	log.Info("services: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req UpsertRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin services create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin services create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	svc, err := h.catalog.Create(ctx, req)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			transport.WriteError(w, http.StatusConflict, "service already exists", nil)
			return
		}
		log.Error("admin services create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.invalidate(r.Context())
	log.Info("admin services create: ok", slog.String("slug", svc.ID))
	transport.WriteJSON(w, http.StatusCreated, svc)
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	slug := chi.URLParam(r, "slug")

	var req UpsertRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin services update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin services update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	svc, err := h.catalog.Update(ctx, slug, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "service not found", nil)
			return
		}
		log.Error("admin services update: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.invalidate(r.Context())
	log.Info("admin services update: ok", slog.String("slug", svc.ID))
	transport.WriteJSON(w, http.StatusOK, svc)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	slug := chi.URLParam(r, "slug")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.catalog.Delete(ctx, slug); err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "service not found", nil)
			return
		}
		log.Error("admin services delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.invalidate(r.Context())
	log.Info("admin services delete: ok", slog.String("slug", slug))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	_ = h.cache.Delete(ctx, listCacheKey)
}
