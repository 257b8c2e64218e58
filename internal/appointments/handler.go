package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vetcare-backend/internal/cache"
	"vetcare-backend/internal/httpx"
	"vetcare-backend/internal/middleware"
	"vetcare-backend/internal/schedule"
	"vetcare-backend/internal/transport"
	"vetcare-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

// OwnerDirectory resolves the booking account; implemented by the users service.
type OwnerDirectory interface {
	OwnerByID(ctx context.Context, id string) (Owner, error)
}

type Handler struct {
	service   *Service
	directory OwnerDirectory
	val       *validation.Validator
	log       *slog.Logger
	cache     cache.Cache
	cacheTTL  time.Duration
}

func NewHandler(service *Service, directory OwnerDirectory, val *validation.Validator, log *slog.Logger, c cache.Cache, cacheTTL time.Duration) *Handler {
	return &Handler{
		service:   service,
		directory: directory,
		val:       val,
		log:       log,
		cache:     c,
		cacheTTL:  cacheTTL,
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req BookingRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("appointments book: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("appointments book: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	owner, err := h.directory.OwnerByID(ctx, ident.UserID)
	if err != nil {
		log.Error("appointments book: owner lookup failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	appointment, err := h.service.Book(ctx, owner, req)
	if err != nil {
		h.writeBookingError(w, log, err)
		return
	}

	h.invalidateAvailability(r.Context(), appointment.Date)

	go func(created Appointment) {
		notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer notifyCancel()
		if err := h.service.NotifyBookingReceived(notifyCtx, created); err != nil {
			h.log.Warn("appointments book: confirmation email failed",
				slog.String("appointment_id", created.ID),
				slog.String("error", err.Error()),
			)
		}
	}(appointment)

	log.Info("appointments book: pending",
		slog.String("appointment_id", appointment.ID),
		slog.String("owner_id", appointment.OwnerID),
		slog.String("date", appointment.Date),
		slog.String("time", appointment.Time),
	)
	transport.WriteJSON(w, http.StatusCreated, appointment)
}

func (h *Handler) writeBookingError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrDateInPast):
		log.Warn("appointments book: date in the past")
		transport.WriteError(w, http.StatusBadRequest, "date in the past", nil)
	case errors.Is(err, ErrSlotNotOffered):
		log.Warn("appointments book: slot outside clinic hours")
		transport.WriteError(w, http.StatusBadRequest, "slot not available", nil)
	case errors.Is(err, ErrSlotPassed):
		log.Warn("appointments book: slot already passed")
		transport.WriteError(w, http.StatusBadRequest, "slot already passed", nil)
	case errors.Is(err, ErrSlotTaken):
		log.Warn("appointments book: slot taken")
		transport.WriteError(w, http.StatusConflict, "slot already booked", nil)
	default:
		log.Error("appointments book: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appointment, meds, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("appointments get: not found", slog.String("appointment_id", id))
			transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
			return
		}
		log.Error("appointments get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if ident, ok := middleware.IdentityFromContext(r.Context()); ok {
		if ident.Role != "admin" && appointment.OwnerID != ident.UserID {
			transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
			return
		}
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointment": appointment,
		"medications": meds,
	})
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 50, 200)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := ListFilter{
		OwnerID: ident.UserID,
		Status:  strings.TrimSpace(r.URL.Query().Get("status")),
	}
	items, total, err := h.service.List(ctx, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("appointments list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

type availabilityQuery struct {
	Date string `validate:"required,date"`
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	q := availabilityQuery{Date: r.URL.Query().Get("date")}
	if err := h.val.Struct(q); err != nil {
		log.Warn("availability: invalid query")
		transport.WriteError(w, http.StatusBadRequest, "invalid query", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	cacheKey := "availability:" + q.Date
	if h.cache != nil {
		if cached, ok, err := h.cache.Get(r.Context(), cacheKey); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	slots, err := h.service.AvailableSlots(ctx, q.Date, time.Now())
	if err != nil {
		log.Error("availability: compute error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "availability error", nil)
		return
	}

	response := map[string]interface{}{
		"date":  q.Date,
		"slots": slots,
	}
	if payload, err := json.Marshal(response); err == nil && h.cache != nil {
		_ = h.cache.Set(r.Context(), cacheKey, payload, h.cacheTTL)
	}

	log.Info("availability: ok", slog.String("date", q.Date), slog.Int("slots", len(slots)))
	transport.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 50, 200)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filter := ListFilter{
		Date:   strings.TrimSpace(r.URL.Query().Get("date")),
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("admin appointments list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (h *Handler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	updated, err := h.service.Approve(ctx, id)
	if err != nil {
		h.writeTransitionError(w, log, "approve", id, err)
		return
	}

	h.invalidateAvailability(r.Context(), updated.Date)
	h.notifyDecision(updated)

	log.Info("admin appointments approve: ok", slog.String("appointment_id", id))
	transport.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) AdminDecline(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")

	var req DeclineRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin appointments decline: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin appointments decline: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	updated, err := h.service.Decline(ctx, id, req.Reason)
	if err != nil {
		h.writeTransitionError(w, log, "decline", id, err)
		return
	}

	h.invalidateAvailability(r.Context(), updated.Date)
	h.notifyDecision(updated)

	log.Info("admin appointments decline: ok", slog.String("appointment_id", id))
	transport.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) AdminFollowUp(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")

	var req FollowUpRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin appointments followup: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin appointments followup: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	updated, err := h.service.ScheduleFollowUp(ctx, id, req)
	if err != nil {
		h.writeTransitionError(w, log, "followup", id, err)
		return
	}

	log.Info("admin appointments followup: ok",
		slog.String("appointment_id", id),
		slog.String("follow_up_date", updated.FollowUpDate),
	)
	transport.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) AdminAddMedications(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")

	var req AddMedicationsRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin appointments medications: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin appointments medications: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	updated, meds, err := h.service.AttachMedications(ctx, id, req.Medications)
	if err != nil {
		if errors.Is(err, ErrNoMedications) {
			log.Warn("admin appointments medications: all rows empty", slog.String("appointment_id", id))
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"medications": "required"})
			return
		}
		h.writeTransitionError(w, log, "medications", id, err)
		return
	}

	log.Info("admin appointments medications: completed",
		slog.String("appointment_id", id),
		slog.Int("medications", len(meds)),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointment": updated,
		"medications": meds,
	})
}

func (h *Handler) writeTransitionError(w http.ResponseWriter, log *slog.Logger, action, id string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn("admin appointments "+action+": not found", slog.String("appointment_id", id))
		transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		log.Warn("admin appointments "+action+": invalid transition", slog.String("appointment_id", id))
		transport.WriteError(w, http.StatusConflict, "invalid status transition", nil)
	case errors.Is(err, ErrEmptyReason):
		log.Warn("admin appointments "+action+": empty reason", slog.String("appointment_id", id))
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"reason": "required"})
	case errors.Is(err, schedule.ErrInvalidDate):
		log.Warn("admin appointments "+action+": invalid date", slog.String("appointment_id", id))
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
	default:
		log.Error("admin appointments "+action+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) AdminCreateBlock(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req BlockRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin blocks create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin blocks create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	block, err := h.service.CreateBlock(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDateInPast):
			transport.WriteError(w, http.StatusBadRequest, "date in the past", nil)
		case errors.Is(err, ErrSlotNotOffered):
			transport.WriteError(w, http.StatusBadRequest, "slot not available", nil)
		default:
			log.Error("admin blocks create: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	h.invalidateAvailability(r.Context(), block.Date)

	log.Info("admin blocks create: ok", slog.String("block_id", block.ID), slog.String("date", block.Date))
	transport.WriteJSON(w, http.StatusCreated, block)
}

func (h *Handler) AdminDeleteBlock(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.DeleteBlock(ctx, id); err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			log.Warn("admin blocks delete: not found", slog.String("block_id", id))
			transport.WriteError(w, http.StatusNotFound, "block not found", nil)
			return
		}
		log.Error("admin blocks delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if h.cache != nil {
		_ = h.cache.DeletePrefix(r.Context(), "availability:")
	}

	log.Info("admin blocks delete: ok", slog.String("block_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) invalidateAvailability(ctx context.Context, date string) {
	if h.cache == nil {
		return
	}
	_ = h.cache.Delete(ctx, "availability:"+date)
}

func (h *Handler) notifyDecision(appointment Appointment) {
	go func(a Appointment) {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		if err := h.service.NotifyDecision(notifyCtx, a); err != nil {
			h.log.Warn("appointments decision email failed",
				slog.String("appointment_id", a.ID),
				slog.String("status", a.Status),
				slog.String("error", err.Error()),
			)
		}
	}(appointment)
}
