package broadcast

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/pubsub"
)

// RoomFanout delivers a message to the local sockets of a room.
type RoomFanout interface {
	BroadcastToRoom(roomID string, message interface{}, exclude string) error
	CloseRoom(roomID string, message interface{}) error
}

// Relay consumes every room event from the bus and fans it out to the
// sockets this instance holds in that room.
type Relay struct {
	subscriber pubsub.Subscriber
	fanout     RoomFanout
	pattern    string
	doneCh     chan struct{}
}

// NewRelay creates a relay for prefix-scoped room channels.
func NewRelay(subscriber pubsub.Subscriber, fanout RoomFanout, prefix string) *Relay {
	return &Relay{
		subscriber: subscriber,
		fanout:     fanout,
		pattern:    pubsub.RoomEventsPattern(prefix),
		doneCh:     make(chan struct{}),
	}
}

// Start subscribes and begins relaying in the background. It returns once
// the subscription is active.
func (r *Relay) Start(ctx context.Context) error {
	events, err := r.subscriber.SubscribePattern(ctx, r.pattern)
	if err != nil {
		return fmt.Errorf("subscribe room events: %w", err)
	}
	go r.run(events)
	return nil
}

// Stop ends the subscription. Call Done() to wait for the loop to exit.
func (r *Relay) Stop(ctx context.Context) error {
	return r.subscriber.Unsubscribe(ctx, r.pattern)
}

// Done returns a channel that is closed when the relay has fully stopped.
func (r *Relay) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Relay) run(events <-chan *pubsub.Event) {
	defer close(r.doneCh)
	l := pkglog.L()

	for event := range events {
		if event.RoomID == "" {
			l.Warn().Str(pkglog.FieldEvent, event.Type).Msg("relay: dropping event without room")
			continue
		}

		var err error
		if event.Type == string(domain.EventRoomEnded) {
			err = r.fanout.CloseRoom(event.RoomID, event)
		} else {
			err = r.fanout.BroadcastToRoom(event.RoomID, event, "")
		}
		if err != nil {
			l.Error().Err(err).
				Str(pkglog.FieldRoomID, event.RoomID).
				Str(pkglog.FieldEvent, event.Type).
				Msg("relay: fan-out failed")
		}
	}
}
