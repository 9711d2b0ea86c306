package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/schedule"
)

// ScheduleRepository stores availability in its canonical wire form as jsonb. Rows are
// re-parsed on read so a schedule never reaches the resolver unvalidated.
type ScheduleRepository struct{}

func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{}
}

func (r *ScheduleRepository) Get(ctx context.Context, q querier, trainerID string) (schedule.Weekly, error) {
	var (
		tz  string
		raw []byte
	)
	err := q.QueryRow(ctx, `
		SELECT timezone, availability
		FROM trainer_schedules
		WHERE trainer_id = $1
	`, trainerID).Scan(&tz, &raw)
	if IsNotFound(err) {
		return schedule.Weekly{}, model.ErrNotFound
	}
	if err != nil {
		return schedule.Weekly{}, err
	}

	var days map[string][]string
	if err := json.Unmarshal(raw, &days); err != nil {
		return schedule.Weekly{}, fmt.Errorf("decode schedule for %s: %w", trainerID, err)
	}
	weekly, err := schedule.ParseWeekly(days, tz)
	if err != nil {
		return schedule.Weekly{}, fmt.Errorf("stored schedule for %s: %w", trainerID, err)
	}
	return weekly, nil
}

func (r *ScheduleRepository) Upsert(ctx context.Context, tx pgx.Tx, trainerID string, w schedule.Weekly) error {
	raw, err := json.Marshal(w.Format())
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO trainer_schedules (trainer_id, timezone, availability, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (trainer_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			availability = EXCLUDED.availability,
			updated_at = now()
	`, trainerID, w.TimeZone(), raw)
	return err
}
