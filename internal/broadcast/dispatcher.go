package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/pubsub"
)

// LocalSender delivers a message to a socket held by this instance.
type LocalSender interface {
	SendToClient(clientID string, message interface{}) error
}

// Dispatcher delivers the broadcasts returned by room operations. Room-wide
// broadcasts go through the event bus so every instance sees them;
// connection-targeted ones are sent straight to the local socket, which is
// always held by the instance that produced them.
type Dispatcher struct {
	publisher pubsub.Publisher
	local     LocalSender
	prefix    string
}

// NewDispatcher creates a Dispatcher publishing on prefix-scoped room channels.
func NewDispatcher(publisher pubsub.Publisher, local LocalSender, prefix string) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		local:     local,
		prefix:    prefix,
	}
}

// Dispatch sends broadcasts in order. A failed delivery is logged and does
// not stop the rest; all failures are returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, broadcasts []domain.Broadcast) error {
	var errs []error
	for _, b := range broadcasts {
		if err := d.dispatch(ctx, b); err != nil {
			l := pkglog.Ctx(pkglog.WithRoom(ctx, b.RoomID, ""))
			l.Error().Err(err).
				Str(pkglog.FieldEvent, string(b.Event)).
				Msg("failed to dispatch broadcast")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) dispatch(ctx context.Context, b domain.Broadcast) error {
	event, err := pubsub.NewEvent(string(b.Event), b.RoomID, b.Payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.Event, err)
	}

	if b.ConnectionID != "" {
		return d.local.SendToClient(b.ConnectionID, event)
	}
	return d.publisher.Publish(ctx, pubsub.RoomEventsChannel(d.prefix, b.RoomID), event)
}
