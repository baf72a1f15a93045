package pubsub

import (
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelToTopicAndKey(t *testing.T) {
	topic, key, err := channelToTopicAndKey(RoomEventsChannel("live", "ls-abc"))
	require.NoError(t, err)
	assert.Equal(t, "live-events", topic)
	assert.Equal(t, "ls-abc", key)

	topic, key, err = channelToTopicAndKey(RoomEventsChannel("staging", "ls-abc"))
	require.NoError(t, err)
	assert.Equal(t, "staging-events", topic)
	assert.Equal(t, "ls-abc", key)

	for _, bad := range []string{
		"live:rooms",
		"live:room::events",
		"live:room:ls-abc:chat",
		RoomEventsPattern("live"),
	} {
		_, _, err := channelToTopicAndKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestPatternToTopic(t *testing.T) {
	topic, err := patternToTopic(RoomEventsPattern("live"))
	require.NoError(t, err)
	assert.Equal(t, "live-events", topic)

	_, err = patternToTopic(RoomEventsChannel("live", "ls-abc"))
	assert.Error(t, err)
	_, err = patternToTopic("live:*")
	assert.Error(t, err)
}

func TestKafkaGroupIDPerInstance(t *testing.T) {
	k := &KafkaPubSub{config: KafkaConfig{GroupID: "livestream-service", InstanceID: "pod/1"}}

	assert.Equal(t, "livestream-service-pod-1", k.groupID(RoomEventsPattern("live"), ""))
	assert.Equal(t, "livestream-service-pod-1-live-room-ls-1-events",
		k.groupID(RoomEventsChannel("live", "ls-1"), "ls-1"))
	assert.Equal(t, "livestream-service-pod-1", k.clientID())

	k = &KafkaPubSub{}
	assert.Equal(t, "pubsub-default", k.groupID("live:room:*:events", ""))
	assert.Equal(t, "livestream-service", k.clientID())
}

func TestKafkaMessageRoundTrip(t *testing.T) {
	event, err := NewEvent("participant_joined", "ls-1", map[string]interface{}{"user_id": 22})
	require.NoError(t, err)

	msg, err := encodeMessage(RoomEventsChannel("live", "ls-1"), event)
	require.NoError(t, err)
	require.NotNil(t, msg.TopicPartition.Topic)
	assert.Equal(t, "live-events", *msg.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, msg.TopicPartition.Partition)
	assert.Equal(t, "ls-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, headerEventType, msg.Headers[0].Key)
	assert.Equal(t, "participant_joined", string(msg.Headers[0].Value))

	got, err := decodeMessage(msg, "")
	require.NoError(t, err)
	assert.Equal(t, "participant_joined", got.Type)
	assert.Equal(t, "ls-1", got.RoomID)

	got, err = decodeMessage(msg, "ls-1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	got, err = decodeMessage(msg, "ls-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKafkaEncodeRejectsMismatchedRoom(t *testing.T) {
	event, err := NewEvent("room_ended", "ls-1", nil)
	require.NoError(t, err)

	_, err = encodeMessage(RoomEventsChannel("live", "ls-2"), event)
	assert.Error(t, err)
	_, err = encodeMessage("live:rooms", event)
	assert.Error(t, err)
}

func TestKafkaDecodeRejectsMalformed(t *testing.T) {
	_, err := decodeMessage(&kafka.Message{Key: []byte("ls-1"), Value: []byte("not json")}, "")
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = decodeMessage(&kafka.Message{Key: []byte("ls-1"), Value: []byte(`{"type":"room_ended"}`)}, "")
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = decodeMessage(&kafka.Message{
		Key:   []byte("ls-1"),
		Value: []byte(`{"type":"room_ended","room_id":"ls-9"}`),
	}, "")
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestDecodeEvent(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"viewer_count_updated","room_id":"ls-1","payload":{"viewer_count":3}}`))
	require.NoError(t, err)
	var payload map[string]int
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, 3, payload["viewer_count"])

	_, err = DecodeEvent([]byte(`{"room_id":"ls-1"}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
