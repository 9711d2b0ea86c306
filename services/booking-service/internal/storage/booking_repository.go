package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/fitbook/libs/db"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

const bookingColumns = `id::text, trainer_id, COALESCE(client_id, ''), client_name, COALESCE(client_email, ''),
	COALESCE(client_phone, ''), COALESCE(notes, ''), start_time, end_time, status, cancelled_at,
	COALESCE(cancellation_reason, ''), created_at`

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, trainerID, key string) (model.IdempotencyRecord, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (trainer_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (trainer_id, idempotency_key) DO NOTHING
	`, trainerID, key)
	if err != nil {
		return model.IdempotencyRecord{}, err
	}

	rec := model.IdempotencyRecord{TrainerID: trainerID, Key: key}
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(booking_id::text, ''), COALESCE(reason, '')
		FROM booking_idempotency_keys
		WHERE trainer_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, trainerID, key).Scan(&rec.BookingID, &rec.Reason)
	if err != nil {
		return model.IdempotencyRecord{}, err
	}
	return rec, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, rec model.IdempotencyRecord) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = NULLIF($3, '')::uuid,
			reason = NULLIF($4, ''),
			updated_at = now()
		WHERE trainer_id = $1 AND idempotency_key = $2
	`, rec.TrainerID, rec.Key, rec.BookingID, rec.Reason)
	return err
}

// Create inserts a confirmed booking. The bookings_no_overlap exclusion constraint turns a
// lost race into model.ErrOverlap.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(trainer_id, client_id, client_name, client_email, client_phone, notes, start_time, end_time, status)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
		RETURNING id::text, created_at
	`, b.TrainerID, b.ClientID, b.ClientName, b.ClientEmail, b.ClientPhone, b.Notes,
		b.StartTime, b.EndTime, b.Status).Scan(&b.ID, &b.CreatedAt)
	if IsConflict(err) {
		return fmt.Errorf("%w: %v", model.ErrOverlap, err)
	}
	return err
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Booking{}, model.ErrNotFound
	}
	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBooking(row)
	if IsNotFound(err) {
		return model.Booking{}, model.ErrNotFound
	}
	return b, err
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = NULLIF($2, '')
		WHERE id = $1
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// ConfirmedBetween returns confirmed bookings of the trainer that intersect [from, to).
func (r *BookingRepository) ConfirmedBetween(ctx context.Context, q querier, trainerID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := q.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE trainer_id = $1
			AND status = 'confirmed'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, trainerID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (availability.Interval, error) {
		var iv availability.Interval
		err := row.Scan(&iv.Start, &iv.End)
		return iv, err
	})
}

func (r *BookingRepository) ListByTrainer(ctx context.Context, trainerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE trainer_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, trainerID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Booking, error) {
		return scanBooking(row)
	})
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.TrainerID,
		&b.ClientID,
		&b.ClientName,
		&b.ClientEmail,
		&b.ClientPhone,
		&b.Notes,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.CancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	)
	return b, err
}

// IsConflict reports an exclusion constraint violation, which is how Postgres rejects
// the second of two overlapping confirmed bookings.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
