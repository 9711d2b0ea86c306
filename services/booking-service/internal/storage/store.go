package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/fitbook/libs/db"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/schedule"
)

// querier is satisfied by both the pool and an open pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres implementation of booking.Store.
type Store struct {
	pool      *db.Pool
	bookings  *BookingRepository
	schedules *ScheduleRepository
	outbox    *outbox.Repository
}

var (
	_ booking.Store = (*Store)(nil)
	_ querier       = (*db.Pool)(nil)
	_ querier       = pgx.Tx(nil)
)

func NewStore(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{
		pool:      pool,
		bookings:  NewBookingRepository(pool),
		schedules: NewScheduleRepository(),
		outbox:    outboxRepo,
	}
}

func (s *Store) Schedule(ctx context.Context, trainerID string) (schedule.Weekly, error) {
	return s.schedules.Get(ctx, s.pool, trainerID)
}

func (s *Store) ConfirmedBetween(ctx context.Context, trainerID string, from, to time.Time) ([]availability.Interval, error) {
	return s.bookings.ConfirmedBetween(ctx, s.pool, trainerID, from, to)
}

func (s *Store) ListByTrainer(ctx context.Context, trainerID string, limit int) ([]model.Booking, error) {
	return s.bookings.ListByTrainer(ctx, trainerID, limit)
}

// InTx commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var _ booking.Tx = (*pgTx)(nil)

type pgTx struct {
	tx    pgx.Tx
	store *Store
}

func (t *pgTx) Schedule(ctx context.Context, trainerID string) (schedule.Weekly, error) {
	return t.store.schedules.Get(ctx, t.tx, trainerID)
}

func (t *pgTx) ConfirmedBetween(ctx context.Context, trainerID string, from, to time.Time) ([]availability.Interval, error) {
	return t.store.bookings.ConfirmedBetween(ctx, t.tx, trainerID, from, to)
}

func (t *pgTx) LockIdempotencyKey(ctx context.Context, trainerID, key string) (model.IdempotencyRecord, error) {
	return t.store.bookings.LockIdempotencyKey(ctx, t.tx, trainerID, key)
}

func (t *pgTx) FinalizeIdempotency(ctx context.Context, rec model.IdempotencyRecord) error {
	return t.store.bookings.FinalizeIdempotency(ctx, t.tx, rec)
}

func (t *pgTx) CreateBooking(ctx context.Context, b *model.Booking) error {
	return t.store.bookings.Create(ctx, t.tx, b)
}

func (t *pgTx) BookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	return t.store.bookings.GetForUpdate(ctx, t.tx, id)
}

func (t *pgTx) CancelBooking(ctx context.Context, id, reason string) (time.Time, error) {
	return t.store.bookings.Cancel(ctx, t.tx, id, reason)
}

func (t *pgTx) SaveSchedule(ctx context.Context, trainerID string, w schedule.Weekly) error {
	return t.store.schedules.Upsert(ctx, t.tx, trainerID, w)
}

func (t *pgTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.store.outbox.Insert(ctx, t.tx, evt)
}
