package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/auth"
	"github.com/md-rashed-zaman/fitbook/libs/httpx"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/schedule"
)

// BookingService is implemented by *booking.Service.
type BookingService interface {
	Check(ctx context.Context, trainerID string, start, end time.Time) (availability.Verdict, error)
	Book(ctx context.Context, req booking.Request) (model.Booking, availability.Verdict, error)
	Cancel(ctx context.Context, actorID, bookingID, reason string) (model.Booking, error)
	Slots(ctx context.Context, trainerID string, date time.Time, duration time.Duration) ([]availability.Interval, error)
	List(ctx context.Context, trainerID string, limit int) ([]model.Booking, error)
	GetSchedule(ctx context.Context, trainerID string) (schedule.Weekly, error)
	PutSchedule(ctx context.Context, trainerID string, raw map[string][]string, tz string) (schedule.Weekly, error)
}

type BookingHandler struct {
	svc    BookingService
	logger *slog.Logger
}

func NewBookingHandler(svc BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type checkQuery struct {
	TrainerID string `json:"trainer_id" validate:"required,max=128"`
	StartTime string `json:"start_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime   string `json:"end_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

type slotsQuery struct {
	TrainerID       string `json:"trainer_id" validate:"required,max=128"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=5,lte=480"`
}

type createBookingRequest struct {
	TrainerID   string `json:"trainer_id" validate:"required,max=128"`
	ClientName  string `json:"client_name" validate:"required,max=200"`
	ClientEmail string `json:"client_email" validate:"omitempty,email,max=320"`
	ClientPhone string `json:"client_phone" validate:"omitempty,max=40"`
	Notes       string `json:"notes" validate:"omitempty,max=2000"`
	StartTime   string `json:"start_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime     string `json:"end_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
	Reason    string `json:"reason" validate:"omitempty,max=500"`
}

type bookingResponse struct {
	BookingID   string `json:"booking_id"`
	TrainerID   string `json:"trainer_id"`
	ClientID    string `json:"client_id,omitempty"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	Reason      string `json:"cancellation_reason,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		BookingID:   b.ID,
		TrainerID:   b.TrainerID,
		ClientID:    b.ClientID,
		ClientName:  b.ClientName,
		ClientEmail: b.ClientEmail,
		StartTime:   b.StartTime.UTC().Format(time.RFC3339),
		EndTime:     b.EndTime.UTC().Format(time.RFC3339),
		Status:      b.Status,
		Reason:      b.CancelReason,
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Check answers whether a slot could be booked right now. It never writes.
func (h *BookingHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	in := checkQuery{
		TrainerID: strings.TrimSpace(q.Get("trainer_id")),
		StartTime: strings.TrimSpace(q.Get("start_time")),
		EndTime:   strings.TrimSpace(q.Get("end_time")),
	}
	if err := validateStruct(in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	start, _ := time.Parse(time.RFC3339, in.StartTime)
	end, _ := time.Parse(time.RFC3339, in.EndTime)

	verdict, err := h.svc.Check(r.Context(), in.TrainerID, start, end)
	if err != nil {
		h.logger.Error("availability check failed", "trainer_id", in.TrainerID, "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "availability unavailable", "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verdict)
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	in := slotsQuery{
		TrainerID:       strings.TrimSpace(q.Get("trainer_id")),
		Date:            strings.TrimSpace(q.Get("date")),
		DurationMinutes: 60,
	}
	if raw := strings.TrimSpace(q.Get("duration_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "duration_minutes must be an integer", "")
			return
		}
		in.DurationMinutes = n
	}
	if err := validateStruct(in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	date, _ := time.Parse("2006-01-02", in.Date)

	slots, err := h.svc.Slots(r.Context(), in.TrainerID, date, time.Duration(in.DurationMinutes)*time.Minute)
	if err != nil {
		h.logger.Error("slot listing failed", "trainer_id", in.TrainerID, "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "availability unavailable", "")
		return
	}
	resp := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Create books a slot. Callers may be anonymous; a signed-in client is recorded as the
// booking's client so they can cancel it later.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in createBookingRequest
	if err := decode(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > 128 {
		httpx.WriteError(w, http.StatusBadRequest, "Idempotency-Key too long", "")
		return
	}
	start, _ := time.Parse(time.RFC3339, in.StartTime)
	end, _ := time.Parse(time.RFC3339, in.EndTime)

	req := booking.Request{
		TrainerID:      strings.TrimSpace(in.TrainerID),
		ClientName:     in.ClientName,
		ClientEmail:    in.ClientEmail,
		ClientPhone:    in.ClientPhone,
		Notes:          in.Notes,
		Start:          start,
		End:            end,
		IdempotencyKey: key,
	}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		req.ClientID = id.UserID
		if req.ClientEmail == "" {
			req.ClientEmail = id.Email
		}
	}

	b, verdict, err := h.svc.Book(r.Context(), req)
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		httpx.WriteError(w, http.StatusConflict, "time slot already booked", string(verdict.Reason))
		return
	case errors.Is(err, booking.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
		return
	case err != nil:
		h.logger.Error("create booking failed", "trainer_id", req.TrainerID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create booking", "")
		return
	}
	if !verdict.Available {
		httpx.WriteError(w, verdictStatus(verdict.Reason), rejectionMessage(verdict.Reason), string(verdict.Reason))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toBookingResponse(b))
}

func verdictStatus(r availability.Reason) int {
	switch r {
	case availability.SlotAlreadyBooked:
		return http.StatusConflict
	case availability.InvalidInterval:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func rejectionMessage(r availability.Reason) string {
	switch r {
	case availability.NotAvailableThisDay:
		return "trainer is not available on this day"
	case availability.OutsideAvailableHours:
		return "requested time is outside the trainer's available hours"
	case availability.SlotAlreadyBooked:
		return "time slot already booked"
	case availability.InvalidInterval:
		return "end_time must be after start_time"
	default:
		return "slot unavailable"
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	var in cancelBookingRequest
	if err := decode(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	b, err := h.svc.Cancel(r.Context(), id.UserID, in.BookingID, strings.TrimSpace(in.Reason))
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		httpx.WriteError(w, http.StatusNotFound, "booking not found", "")
	case errors.Is(err, booking.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "")
	case errors.Is(err, booking.ErrNotCancellable):
		httpx.WriteError(w, http.StatusConflict, "booking cannot be cancelled", "")
	case err != nil:
		h.logger.Error("cancel booking failed", "booking_id", in.BookingID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to cancel booking", "")
	default:
		httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

// List returns the signed-in trainer's bookings, newest first.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.svc.List(r.Context(), id.UserID, limit)
	if err != nil {
		h.logger.Error("list bookings failed", "trainer_id", id.UserID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list bookings", "")
		return
	}
	items := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingResponse(b))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}
