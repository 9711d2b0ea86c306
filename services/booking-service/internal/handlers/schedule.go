package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/fitbook/libs/auth"
	"github.com/md-rashed-zaman/fitbook/libs/httpx"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/schedule"
)

type scheduleBody struct {
	TimeZone     string              `json:"timezone" validate:"omitempty,max=64"`
	Availability map[string][]string `json:"availability" validate:"required,max=7"`
}

func toScheduleBody(w schedule.Weekly) scheduleBody {
	return scheduleBody{TimeZone: w.TimeZone(), Availability: w.Format()}
}

// Schedule serves GET and PUT for the signed-in trainer's weekly availability.
func (h *BookingHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	switch r.Method {
	case http.MethodGet:
		weekly, err := h.svc.GetSchedule(r.Context(), id.UserID)
		if errors.Is(err, booking.ErrNoSchedule) {
			httpx.WriteError(w, http.StatusNotFound, "no schedule saved", "")
			return
		}
		if err != nil {
			h.logger.Error("load schedule failed", "trainer_id", id.UserID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to load schedule", "")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toScheduleBody(weekly))

	case http.MethodPut:
		var in scheduleBody
		if err := decode(r, &in); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		weekly, err := h.svc.PutSchedule(r.Context(), id.UserID, in.Availability, strings.TrimSpace(in.TimeZone))
		if errors.Is(err, booking.ErrInvalidSchedule) {
			httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "")
			return
		}
		if err != nil {
			h.logger.Error("save schedule failed", "trainer_id", id.UserID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to save schedule", "")
			return
		}
		h.logger.Info("schedule updated", "trainer_id", id.UserID, "timezone", weekly.TimeZone())
		httpx.WriteJSON(w, http.StatusOK, toScheduleBody(weekly))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
