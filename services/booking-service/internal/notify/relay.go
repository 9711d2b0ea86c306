package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "notify:"

const (
	minResubscribeDelay = 500 * time.Millisecond
	maxResubscribeDelay = 30 * time.Second
)

// RedisRelay fans events out across replicas: Notify publishes to Redis and every
// replica's Run loop delivers into its local hub. While the subscription is down,
// Notify delivers into the local hub directly so same-replica streams keep working.
type RedisRelay struct {
	rdb        redis.UniversalClient
	hub        *Hub
	logger     *slog.Logger
	subscribed atomic.Bool
	minDelay   time.Duration
	maxDelay   time.Duration
}

func NewRedisRelay(rdb redis.UniversalClient, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		rdb:      rdb,
		hub:      hub,
		logger:   logger,
		minDelay: minResubscribeDelay,
		maxDelay: maxResubscribeDelay,
	}
}

func (r *RedisRelay) Notify(ctx context.Context, userID string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !r.subscribed.Load() {
		r.hub.Publish(userID, ev)
		if err := r.rdb.Publish(ctx, channelPrefix+userID, payload).Err(); err != nil {
			r.logger.Warn("notification relay unavailable, delivered locally", "user_id", userID, "err", err)
		}
		return nil
	}
	if err := r.rdb.Publish(ctx, channelPrefix+userID, payload).Err(); err != nil {
		r.logger.Warn("publish notification failed, delivered locally", "user_id", userID, "err", err)
		r.hub.Publish(userID, ev)
	}
	return nil
}

// Run keeps a pattern subscription open until ctx is cancelled, resubscribing with
// exponential backoff whenever Redis is unreachable.
func (r *RedisRelay) Run(ctx context.Context) error {
	delay := r.minDelay
	for {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			delay = r.minDelay
		}
		r.logger.Warn("notification relay disconnected", "err", err, "retry_in", delay.String())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
}

// subscribe delivers messages until the subscription ends. A nil error means the
// channel closed after a successful subscribe.
func (r *RedisRelay) subscribe(ctx context.Context) error {
	ps := r.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()
	defer r.subscribed.Store(false)

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	r.subscribed.Store(true)
	r.logger.Info("notification relay subscribed", "pattern", channelPrefix+"*")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(msg)
		}
	}
}

func (r *RedisRelay) deliver(msg *redis.Message) {
	userID := strings.TrimPrefix(msg.Channel, channelPrefix)
	if userID == "" || userID == msg.Channel {
		return
	}
	var ev Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		r.logger.Warn("dropping malformed notification", "channel", msg.Channel, "err", err)
		return
	}
	r.hub.Publish(userID, ev)
}
