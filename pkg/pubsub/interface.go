package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedEvent is returned by DecodeEvent for frames that are not room events.
var ErrMalformedEvent = errors.New("malformed event")

// Event is one room event as carried on the bus. Payload stays encoded so
// relays can forward it to sockets without knowing its shape.
type Event struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent encodes payload into an event stamped with the current UTC time.
func NewEvent(eventType, roomID string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// DecodeEvent parses a frame received from the bus. Frames without an event
// type or room id are rejected.
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type == "" || event.RoomID == "" {
		return nil, fmt.Errorf("%w: missing type or room_id", ErrMalformedEvent)
	}
	return &event, nil
}

// UnmarshalPayload decodes the payload into v.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes room events.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber delivers events from one room channel or from every channel
// matching a pattern. The returned channel is closed when ctx is done or the
// subscription is dropped with Unsubscribe, keyed by the same channel or
// pattern string.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// Bus is the event bus shared by every instance.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
