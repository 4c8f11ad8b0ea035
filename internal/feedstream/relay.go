package feedstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"proveit/models"
)

// Broadcaster delivers an event to this instance's live clients.
type Broadcaster interface {
	Publish(ctx context.Context, ev models.FeedEvent)
}

// Relay fans feed events out across instances through a Redis stream. Each
// instance reads the stream through its own consumer group, so every
// instance sees every event and hands it to its local hub.
type Relay struct {
	rdb      *redis.Client
	local    Broadcaster
	logger   *slog.Logger
	stream   string
	group    string
	consumer string
	maxLen   int64
}

func NewRelay(rdb *redis.Client, local Broadcaster, logger *slog.Logger) *Relay {
	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return &Relay{
		rdb:      rdb,
		local:    local,
		logger:   logger,
		stream:   StreamKey,
		group:    "feed:group:" + instanceID,
		consumer: "consumer-" + instanceID,
		maxLen:   10000,
	}
}

// Publish implements services.Publisher. If Redis is unreachable the event
// is still delivered to this instance's clients.
func (r *Relay) Publish(ctx context.Context, ev models.FeedEvent) {
	data, err := marshalEvent(r.consumer, ev)
	if err != nil {
		r.logger.Error("failed to marshal feed event", "error", err)
		return
	}
	err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{"data": data},
		MaxLen: r.maxLen,
		Approx: true,
	}).Err()
	if err != nil {
		r.logger.Warn("feed stream unavailable, delivering locally", "type", ev.Type, "error", err)
		r.local.Publish(ctx, ev)
	}
}

// Start creates this instance's consumer group. Events added before Start
// are not replayed.
func (r *Relay) Start(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Run forwards stream entries to the local hub until ctx is cancelled, then
// removes the consumer group.
func (r *Relay) Run(ctx context.Context) {
	defer func() {
		cleanup, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.rdb.XGroupDestroy(cleanup, r.stream, r.group).Err(); err != nil {
			r.logger.Debug("failed to remove consumer group", "group", r.group, "error", err)
		}
	}()

	for ctx.Err() == nil {
		streams, err := r.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.group,
			Consumer: r.consumer,
			Streams:  []string{r.stream, ">"},
			Count:    100,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.logger.Warn("feed stream read failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if err := r.process(ctx, msg); err != nil {
					r.logger.Warn("dropping malformed feed event", "id", msg.ID, "error", err)
				}
				if err := r.rdb.XAck(ctx, r.stream, r.group, msg.ID).Err(); err != nil {
					r.logger.Debug("failed to ack feed event", "id", msg.ID, "error", err)
				}
			}
		}
	}
}

func (r *Relay) process(ctx context.Context, msg redis.XMessage) error {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return errors.New("invalid message format: missing data field")
	}
	env, err := unmarshalEvent(data)
	if err != nil {
		return err
	}
	r.local.Publish(ctx, env.Event)
	return nil
}
