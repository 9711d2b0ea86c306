package model

import (
	"errors"
	"time"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrOverlap is returned by stores when a confirmed booking would intersect another
	// confirmed booking of the same trainer.
	ErrOverlap = errors.New("booking overlaps an existing booking")
)

type Booking struct {
	ID           string
	TrainerID    string
	ClientID     string
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	Notes        string
	StartTime    time.Time
	EndTime      time.Time
	Status       string
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}

// IdempotencyRecord remembers the outcome of a booking request made with an
// Idempotency-Key. A record with neither BookingID nor Reason is still in flight.
type IdempotencyRecord struct {
	TrainerID string
	Key       string
	BookingID string
	Reason    string
}

func (r IdempotencyRecord) Completed() bool {
	return r.BookingID != "" || r.Reason != ""
}
