// Package bridge mirrors link state into Redis and publishes link
// events on a pub/sub channel, so other services on the host can follow
// the radio without speaking HTTP.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/byhat/loracore/pkg/link"
)

const (
	stateKey      = "loracore:link"
	eventsChannel = "loracore:events"
)

// Bridge publishes link state and events to Redis.
type Bridge struct {
	client *redis.Client
}

// New connects to Redis and returns a bridge.
func New(addr string, password string, db int) (*Bridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Bridge{client: client}, nil
}

// Run consumes link events until ctx is cancelled or the subscription
// channel closes. Intended to run in its own goroutine.
func (b *Bridge) Run(ctx context.Context, subscriber link.EventSubscriber) {
	events := subscriber.Subscribe()
	defer subscriber.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := b.publish(ctx, evt); err != nil {
				log.Warn().Err(err).Str("type", evt.Type).Msg("Redis publish failed")
			}
		}
	}
}

// publish writes the event to the pub/sub channel and folds state
// changes into the link hash in one pipeline round trip.
func (b *Bridge) publish(ctx context.Context, evt link.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	pipe := b.client.Pipeline()
	pipe.Publish(ctx, eventsChannel, payload)

	switch evt.Type {
	case link.EventPortOpened:
		pipe.HSet(ctx, stateKey, "connected", "true")
	case link.EventPortClosed:
		pipe.HSet(ctx, stateKey, "connected", "false")
	case link.EventPacketSent:
		pipe.HSet(ctx, stateKey, "last_send_ok", strconv.FormatBool(evt.OK))
	case link.EventPacketReceived:
		pipe.HSet(ctx, stateKey, "last_received_bytes", evt.Received)
	case link.EventError:
		pipe.HSet(ctx, stateKey, "last_error", evt.Message)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// UpdateStats writes a counters snapshot into the link hash.
func (b *Bridge) UpdateStats(ctx context.Context, stats link.Stats) error {
	return b.client.HSet(ctx, stateKey,
		"packets_sent", stats.PacketsSent,
		"packets_received", stats.PacketsReceived,
		"retransmits", stats.Retransmits,
		"frames_rejected", stats.FramesRejected,
	).Err()
}

// Close releases the Redis connection.
func (b *Bridge) Close() error {
	return b.client.Close()
}
