// Package booking ties the availability resolver to persistence: it loads a trainer's
// schedule and bookings, resolves a request, and writes the booking together with its
// outbox event. The resolver's verdict is advisory; the store's exclusion rule decides
// races between concurrent writers.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/schedule"
)

var (
	ErrSlotTaken       = errors.New("slot already booked")
	ErrBookingNotFound = errors.New("booking not found")
	ErrNoSchedule      = errors.New("trainer has no schedule")
	ErrForbidden       = errors.New("caller is not a party to this booking")
	ErrNotCancellable  = errors.New("booking cannot be cancelled")
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrInvalidRequest  = errors.New("invalid booking request")
)

// Reader is what resolving a request needs. Both Store and Tx provide it; a Tx answers
// on its own connection.
type Reader interface {
	// Schedule returns model.ErrNotFound when the trainer never saved one.
	Schedule(ctx context.Context, trainerID string) (schedule.Weekly, error)
	// ConfirmedBetween returns confirmed bookings intersecting [from, to).
	ConfirmedBetween(ctx context.Context, trainerID string, from, to time.Time) ([]availability.Interval, error)
}

// Store is the read side plus a transaction boundary for writes.
type Store interface {
	Reader
	ListByTrainer(ctx context.Context, trainerID string, limit int) ([]model.Booking, error)
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the write side. Every method runs inside the transaction opened by Store.InTx and
// must not touch other connections.
type Tx interface {
	Reader
	LockIdempotencyKey(ctx context.Context, trainerID, key string) (model.IdempotencyRecord, error)
	FinalizeIdempotency(ctx context.Context, rec model.IdempotencyRecord) error
	// CreateBooking fills in ID and CreatedAt. It returns model.ErrOverlap when another
	// confirmed booking of the trainer intersects b.
	CreateBooking(ctx context.Context, b *model.Booking) error
	// BookingForUpdate returns model.ErrNotFound for unknown ids.
	BookingForUpdate(ctx context.Context, id string) (model.Booking, error)
	CancelBooking(ctx context.Context, id, reason string) (time.Time, error)
	SaveSchedule(ctx context.Context, trainerID string, w schedule.Weekly) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

// Notifier pushes real-time events to a user. Failures are logged, never surfaced.
type Notifier interface {
	Notify(ctx context.Context, userID string, ev notify.Event) error
}

type Options struct {
	// SlotStep is the spacing of offered slot starts. Defaults to 15 minutes.
	SlotStep time.Duration
	Now      func() time.Time
}

type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	step     time.Duration
	now      func() time.Time
}

func NewService(store Store, notifier Notifier, logger *slog.Logger, opts Options) *Service {
	if opts.SlotStep <= 0 {
		opts.SlotStep = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		step:     opts.SlotStep,
		now:      opts.Now,
	}
}

// Check resolves [start, end) for trainerID against current data without writing.
// A trainer without a saved schedule has no availability on any day.
func (s *Service) Check(ctx context.Context, trainerID string, start, end time.Time) (availability.Verdict, error) {
	return resolve(ctx, s.store, trainerID, start, end)
}

func resolve(ctx context.Context, r Reader, trainerID string, start, end time.Time) (availability.Verdict, error) {
	if !end.After(start) {
		return availability.Reject(availability.InvalidInterval), nil
	}
	weekly, err := loadSchedule(ctx, r, trainerID)
	if err != nil {
		return availability.Verdict{}, err
	}
	existing, err := r.ConfirmedBetween(ctx, trainerID, start, end)
	if err != nil {
		return availability.Verdict{}, fmt.Errorf("load bookings: %w", err)
	}
	return availability.Resolve(start, end, weekly, existing), nil
}

func loadSchedule(ctx context.Context, r Reader, trainerID string) (schedule.Weekly, error) {
	weekly, err := r.Schedule(ctx, trainerID)
	if errors.Is(err, model.ErrNotFound) {
		return schedule.Weekly{}, nil
	}
	if err != nil {
		return schedule.Weekly{}, fmt.Errorf("load schedule: %w", err)
	}
	return weekly, nil
}

type Request struct {
	TrainerID      string
	ClientID       string
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	Notes          string
	Start          time.Time
	End            time.Time
	IdempotencyKey string
}

func (r Request) validate(now time.Time) error {
	if strings.TrimSpace(r.TrainerID) == "" || strings.TrimSpace(r.ClientName) == "" {
		return fmt.Errorf("%w: trainer and client name are required", ErrInvalidRequest)
	}
	if r.Start.Before(now) {
		return fmt.Errorf("%w: start_time is in the past", ErrInvalidRequest)
	}
	return nil
}

// Book resolves the request and, when it is available, persists it with a
// booking.confirmed outbox event in one transaction. Rejections come back as a verdict
// with a nil error. Losing a race to a concurrent writer returns a SLOT_ALREADY_BOOKED
// verdict together with ErrSlotTaken.
//
// With an idempotency key, the first completed outcome is replayed for later calls.
func (s *Service) Book(ctx context.Context, req Request) (model.Booking, availability.Verdict, error) {
	if !req.End.After(req.Start) {
		return model.Booking{}, availability.Reject(availability.InvalidInterval), nil
	}
	if err := req.validate(s.now()); err != nil {
		return model.Booking{}, availability.Verdict{}, err
	}

	var (
		booked  model.Booking
		verdict availability.Verdict
		replay  bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var rec model.IdempotencyRecord
		if req.IdempotencyKey != "" {
			var err error
			rec, err = tx.LockIdempotencyKey(ctx, req.TrainerID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if rec.Completed() {
				replay = true
				if rec.BookingID == "" {
					verdict = availability.Reject(availability.Reason(rec.Reason))
					return nil
				}
				booked, err = tx.BookingForUpdate(ctx, rec.BookingID)
				if err != nil {
					return fmt.Errorf("load replayed booking: %w", err)
				}
				verdict = availability.Accept()
				return nil
			}
		}

		v, err := resolve(ctx, tx, req.TrainerID, req.Start, req.End)
		if err != nil {
			return err
		}
		verdict = v
		if !v.Available {
			if req.IdempotencyKey == "" {
				return nil
			}
			rec.Reason = string(v.Reason)
			return tx.FinalizeIdempotency(ctx, rec)
		}

		booked = model.Booking{
			TrainerID:   req.TrainerID,
			ClientID:    req.ClientID,
			ClientName:  strings.TrimSpace(req.ClientName),
			ClientEmail: strings.TrimSpace(req.ClientEmail),
			ClientPhone: strings.TrimSpace(req.ClientPhone),
			Notes:       strings.TrimSpace(req.Notes),
			StartTime:   req.Start.UTC(),
			EndTime:     req.End.UTC(),
			Status:      model.StatusConfirmed,
		}
		if err := tx.CreateBooking(ctx, &booked); err != nil {
			if errors.Is(err, model.ErrOverlap) {
				verdict = availability.Reject(availability.SlotAlreadyBooked)
				return ErrSlotTaken
			}
			return fmt.Errorf("create booking: %w", err)
		}

		if err := insertBookingEvent(ctx, tx, outbox.TopicBookingConfirmed, booked); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			rec.BookingID = booked.ID
			if err := tx.FinalizeIdempotency(ctx, rec); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return model.Booking{}, verdict, err
		}
		return model.Booking{}, availability.Verdict{}, err
	}

	if verdict.Available && !replay {
		s.notify(ctx, booked.TrainerID, "booking.confirmed", booked)
		s.logger.Info("booking confirmed", "booking_id", booked.ID, "trainer_id", booked.TrainerID)
	}
	return booked, verdict, nil
}

// Cancel moves a confirmed booking to cancelled. Either party may cancel; cancelling an
// already cancelled booking returns it unchanged.
func (s *Service) Cancel(ctx context.Context, actorID, bookingID, reason string) (model.Booking, error) {
	var (
		b       model.Booking
		changed bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		b, err = tx.BookingForUpdate(ctx, bookingID)
		if errors.Is(err, model.ErrNotFound) {
			return ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}
		if actorID != b.TrainerID && (b.ClientID == "" || actorID != b.ClientID) {
			return ErrForbidden
		}
		if b.Status == model.StatusCancelled {
			return nil
		}
		if b.Status != model.StatusConfirmed {
			return ErrNotCancellable
		}

		cancelledAt, err := tx.CancelBooking(ctx, b.ID, reason)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		b.Status = model.StatusCancelled
		b.CancelledAt = &cancelledAt
		b.CancelReason = reason
		changed = true
		return insertBookingEvent(ctx, tx, outbox.TopicBookingCancelled, b)
	})
	if err != nil {
		return model.Booking{}, err
	}

	if changed {
		other := b.TrainerID
		if actorID == b.TrainerID {
			other = b.ClientID
		}
		if other != "" {
			s.notify(ctx, other, "booking.cancelled", b)
		}
		s.logger.Info("booking cancelled", "booking_id", b.ID, "trainer_id", b.TrainerID, "by", actorID)
	}
	return b, nil
}

// Slots lists open intervals of length duration on the trainer's local calendar date.
func (s *Service) Slots(ctx context.Context, trainerID string, date time.Time, duration time.Duration) ([]availability.Interval, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	weekly, err := loadSchedule(ctx, s.store, trainerID)
	if err != nil {
		return nil, err
	}
	loc := weekly.Location()
	y, m, d := date.Date()
	windows := availability.WindowsOn(weekly, time.Date(y, m, d, 12, 0, 0, 0, loc))
	if len(windows) == 0 {
		return nil, nil
	}

	busy, err := s.store.ConfirmedBetween(ctx, trainerID, windows[0].Start, windows[len(windows)-1].End)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	now := s.now()
	var out []availability.Interval
	for _, w := range windows {
		for _, start := range availability.AvailableSlots(w.Start, w.End, duration, s.step, busy, now) {
			out = append(out, availability.Interval{Start: start, End: start.Add(duration)})
		}
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, trainerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListByTrainer(ctx, trainerID, limit)
}

func (s *Service) GetSchedule(ctx context.Context, trainerID string) (schedule.Weekly, error) {
	weekly, err := s.store.Schedule(ctx, trainerID)
	if errors.Is(err, model.ErrNotFound) {
		return schedule.Weekly{}, ErrNoSchedule
	}
	return weekly, err
}

// PutSchedule validates raw availability and replaces the trainer's schedule.
func (s *Service) PutSchedule(ctx context.Context, trainerID string, raw map[string][]string, tz string) (schedule.Weekly, error) {
	weekly, err := schedule.ParseWeekly(raw, tz)
	if err != nil {
		return schedule.Weekly{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	payload, err := json.Marshal(map[string]any{
		"trainer_id":   trainerID,
		"timezone":     weekly.TimeZone(),
		"availability": weekly.Format(),
	})
	if err != nil {
		return schedule.Weekly{}, err
	}
	err = s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.SaveSchedule(ctx, trainerID, weekly); err != nil {
			return fmt.Errorf("save schedule: %w", err)
		}
		return tx.InsertEvent(ctx, outbox.Event{
			AggregateType: "trainer",
			AggregateID:   trainerID,
			EventType:     outbox.TopicScheduleUpdated,
			Payload:       payload,
		})
	})
	if err != nil {
		return schedule.Weekly{}, err
	}
	if weekly.IsEmpty() {
		s.logger.Info("trainer schedule cleared", "trainer_id", trainerID)
	}
	return weekly, nil
}

func insertBookingEvent(ctx context.Context, tx Tx, topic string, b model.Booking) error {
	payload, err := json.Marshal(eventPayload(b))
	if err != nil {
		return fmt.Errorf("build event payload: %w", err)
	}
	if err := tx.InsertEvent(ctx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     topic,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}
	return nil
}

func eventPayload(b model.Booking) map[string]any {
	p := map[string]any{
		"booking_id":   b.ID,
		"trainer_id":   b.TrainerID,
		"client_id":    b.ClientID,
		"client_name":  b.ClientName,
		"client_email": b.ClientEmail,
		"start_time":   b.StartTime.UTC().Format(time.RFC3339),
		"end_time":     b.EndTime.UTC().Format(time.RFC3339),
		"status":       b.Status,
	}
	if b.CancelledAt != nil {
		p["cancelled_at"] = b.CancelledAt.UTC().Format(time.RFC3339)
		p["reason"] = b.CancelReason
	}
	return p
}

func (s *Service) notify(ctx context.Context, userID, eventType string, b model.Booking) {
	if s.notifier == nil {
		return
	}
	ev, err := notify.NewEvent(eventType, eventPayload(b))
	if err != nil {
		s.logger.Error("build notification", "err", err)
		return
	}
	if err := s.notifier.Notify(ctx, userID, ev); err != nil {
		s.logger.Warn("notification failed", "user_id", userID, "type", eventType, "err", err)
	}
}
