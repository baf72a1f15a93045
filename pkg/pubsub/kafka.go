package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
)

const headerEventType = "event_type"

// All rooms sharing a prefix map to one topic keyed by room id, so the
// events of a room stay on one partition in order.
//
//	"live:room:ls-01hx:events" -> topic "live-events", key "ls-01hx"
//	"live:room:*:events"       -> topic "live-events"
func topicFor(prefix string) string {
	return prefix + "-" + eventsSuffix
}

func channelToTopicAndKey(channel string) (topic, key string, err error) {
	roomID, ok := RoomIDFromChannel(channel)
	if !ok || roomID == "*" {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	prefix, _, _ := strings.Cut(channel, ":")
	return topicFor(prefix), roomID, nil
}

func patternToTopic(pattern string) (string, error) {
	roomID, ok := RoomIDFromChannel(pattern)
	if !ok || roomID != "*" {
		return "", fmt.Errorf("invalid pattern format: %s", pattern)
	}
	prefix, _, _ := strings.Cut(pattern, ":")
	return topicFor(prefix), nil
}

// encodeMessage builds the Kafka record for an event published on channel.
func encodeMessage(channel string, event *Event) (*kafka.Message, error) {
	topic, key, err := channelToTopicAndKey(channel)
	if err != nil {
		return nil, err
	}
	if event.RoomID != key {
		return nil, fmt.Errorf("event for room %q published on %s", event.RoomID, channel)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:     []byte(key),
		Value:   data,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(event.Type)}},
	}, nil
}

// decodeMessage returns the event carried by msg, or nil when msg belongs to
// a room other than filterRoomID.
func decodeMessage(msg *kafka.Message, filterRoomID string) (*Event, error) {
	if filterRoomID != "" && string(msg.Key) != filterRoomID {
		return nil, nil
	}
	event, err := DecodeEvent(msg.Value)
	if err != nil {
		return nil, err
	}
	if len(msg.Key) > 0 && event.RoomID != string(msg.Key) {
		return nil, fmt.Errorf("%w: key %q carries room %q", ErrMalformedEvent, msg.Key, event.RoomID)
	}
	return event, nil
}

// kafkaSubscription tracks a single consumer subscription.
type kafkaSubscription struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
}

// KafkaPubSub is a Bus backed by Kafka. Each instance consumes in its own
// group so every instance sees every room event.
type KafkaPubSub struct {
	producer      *kafka.Producer
	subscriptions map[string]*kafkaSubscription
	config        KafkaConfig
	mu            sync.Mutex
	doneCh        chan struct{}
}

// NewKafkaPubSub creates a new Kafka-based PubSub instance.
func NewKafkaPubSub(cfg KafkaConfig) (*KafkaPubSub, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kps := &KafkaPubSub{
		producer:      p,
		subscriptions: make(map[string]*kafkaSubscription),
		config:        cfg,
		doneCh:        make(chan struct{}),
	}

	go kps.deliveryReportHandler()

	if err := kps.ensureTopics(); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Msg("pubsub: failed to ensure kafka topics (may already exist)")
	}

	return kps, nil
}

// ensureTopics creates the configured topics if they don't exist.
func (k *KafkaPubSub) ensureTopics() error {
	if len(k.config.Topics) == 0 {
		return nil
	}

	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": k.config.Brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	specs := make([]kafka.TopicSpecification, 0, len(k.config.Topics))
	for _, t := range k.config.Topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	l := pkglog.L()
	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			l.Warn().Str("topic", r.Topic).Err(r.Error).Msg("pubsub: failed to create topic")
		}
	}

	return nil
}

// deliveryReportHandler processes delivery reports from the producer.
func (k *KafkaPubSub) deliveryReportHandler() {
	l := pkglog.L()
	for e := range k.producer.Events() {
		if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
			l.Error().Err(ev.TopicPartition.Error).Msg("pubsub: kafka delivery failed")
		}
	}
	close(k.doneCh)
}

// Publish produces the event to its room's topic, keyed by room id.
func (k *KafkaPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	msg, err := encodeMessage(channel, event)
	if err != nil {
		return err
	}
	if err := k.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Subscribe consumes the shared topic and keeps only one room's events.
func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	topic, roomID, err := channelToTopicAndKey(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel: %w", err)
	}

	return k.subscribeToTopic(ctx, channel, topic, roomID)
}

// SubscribePattern consumes every message on the pattern's topic.
func (k *KafkaPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	topic, err := patternToTopic(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pattern: %w", err)
	}

	return k.subscribeToTopic(ctx, pattern, topic, "")
}

// groupID is unique per instance, and per room for single-room subscriptions.
func (k *KafkaPubSub) groupID(subKey, filterRoomID string) string {
	groupID := k.config.GroupID
	if groupID == "" {
		groupID = "pubsub-default"
	}
	if k.config.InstanceID != "" {
		groupID = fmt.Sprintf("%s-%s", groupID, sanitizeGroupID(k.config.InstanceID))
	}
	if filterRoomID != "" {
		groupID = fmt.Sprintf("%s-%s", groupID, sanitizeGroupID(subKey))
	}
	return groupID
}

// subscribeToTopic creates a consumer for a topic, optionally filtering by roomID.
func (k *KafkaPubSub) subscribeToTopic(ctx context.Context, subKey, topic, filterRoomID string) (<-chan *Event, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if existing, ok := k.subscriptions[subKey]; ok {
		existing.cancel()
		existing.consumer.Close()
		delete(k.subscriptions, subKey)
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.config.Brokers,
		"group.id":                k.groupID(subKey, filterRoomID),
		"client.id":               k.clientID(),
		"auto.offset.reset":       "latest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	eventCh := make(chan *Event, eventBuffer)

	k.subscriptions[subKey] = &kafkaSubscription{
		consumer: c,
		cancel:   cancel,
	}

	go k.consumeMessages(subCtx, c, eventCh, filterRoomID)

	return eventCh, nil
}

// consumeMessages polls Kafka and forwards events to the channel.
func (k *KafkaPubSub) consumeMessages(ctx context.Context, c *kafka.Consumer, eventCh chan<- *Event, filterRoomID string) {
	defer close(eventCh)
	l := pkglog.L()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := c.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			event, err := decodeMessage(e, filterRoomID)
			if err != nil {
				l.Warn().Err(err).Str("key", string(e.Key)).Msg("pubsub: dropping undecodable kafka message")
				continue
			}
			if event == nil {
				continue
			}

			select {
			case eventCh <- event:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str("type", event.Type).Msg("pubsub: subscriber buffer full, dropping event")
			}

		case kafka.Error:
			l.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("pubsub: kafka error")
			if e.IsFatal() {
				return
			}
		}
	}
}

// Unsubscribe unsubscribes from a channel or pattern.
func (k *KafkaPubSub) Unsubscribe(ctx context.Context, channel string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if sub, ok := k.subscriptions[channel]; ok {
		sub.cancel()
		delete(k.subscriptions, channel)
		if err := sub.consumer.Close(); err != nil {
			return fmt.Errorf("failed to close consumer: %w", err)
		}
	}

	return nil
}

// Close closes all subscriptions and the producer.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, sub := range k.subscriptions {
		sub.cancel()
		sub.consumer.Close()
		delete(k.subscriptions, key)
	}

	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh

	return nil
}

func (k *KafkaPubSub) clientID() string {
	if k.config.InstanceID == "" {
		return "livestream-service"
	}
	return "livestream-service-" + sanitizeGroupID(k.config.InstanceID)
}

var groupIDRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeGroupID replaces characters not suitable for Kafka group IDs.
func sanitizeGroupID(s string) string {
	return groupIDRegexp.ReplaceAllString(s, "-")
}
