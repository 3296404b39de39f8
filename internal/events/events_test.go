package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct{ mock.Mock }

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error { return m.Called().Error(0) }

func TestKafkaPublishKeysByVideo(t *testing.T) {
	w := &mockWriter{}
	k := &Kafka{writer: w}
	videoID, userID := uuid.New(), uuid.New()
	ev := New(TypeVideoUpdated, videoID, userID, "video.asset.ready", map[string]string{"muxStatus": "ready"})

	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		var got Event
		if err := json.Unmarshal(msgs[0].Value, &got); err != nil {
			return false
		}
		return string(msgs[0].Key) == videoID.String() &&
			got.Type == TypeVideoUpdated &&
			got.UserID == userID &&
			string(msgs[0].Headers[0].Value) == TypeVideoUpdated
	})).Return(nil).Once()

	require.NoError(t, k.Publish(context.Background(), ev))
	w.AssertExpectations(t)
}

func TestKafkaPublishError(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	k := &Kafka{writer: w}
	err := k.Publish(context.Background(), New(TypeVideoDeleted, uuid.New(), uuid.New(), "video.asset.deleted", nil))
	assert.ErrorContains(t, err, "broker down")
}

func TestNewEvent(t *testing.T) {
	ev := New(TypeVideoDeleted, uuid.New(), uuid.New(), "videos.remove", nil)
	assert.Nil(t, ev.Data)
	assert.NotZero(t, ev.At)
	assert.Equal(t, "videos:"+ev.UserID.String(), Channel(ev.UserID))

	_, err := NewKafka(nil, "topic", nil)
	assert.Error(t, err)
	assert.NoError(t, Nop{}.Publish(context.Background(), ev))
}
