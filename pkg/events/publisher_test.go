package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lifeline/pkg/logger"
	"lifeline/pkg/producer"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProducer struct {
	mock.Mock
	mu     sync.Mutex
	values [][]byte
}

func (m *MockProducer) PublishAsync(ctx context.Context, key, value []byte) <-chan producer.ProduceResult {
	args := m.Called(ctx, key, value)
	m.mu.Lock()
	m.values = append(m.values, value)
	m.mu.Unlock()

	ch := make(chan producer.ProduceResult, 1)
	ch <- producer.ProduceResult{Error: args.Error(0)}
	close(ch)
	return ch
}

func (m *MockProducer) Close() error {
	return m.Called().Error(0)
}

func fastPublisher(p producer.Producer) *KafkaPublisher {
	pub := NewKafkaPublisher(logger.Nop(), p)
	pub.retryOpts.InitialInterval = time.Millisecond
	pub.retryOpts.MaxInterval = time.Millisecond
	return pub
}

func TestKafkaPublisherKeysBySKU(t *testing.T) {
	mp := new(MockProducer)
	mp.On("PublishAsync", mock.Anything, []byte("abc123"), mock.Anything).Return(nil).Once()
	mp.On("Close").Return(nil)

	pub := fastPublisher(mp)
	event := New(TypeLevelUp, "abc123", time.Now())
	event.Level = 4
	pub.Publish(context.Background(), event)

	require.NoError(t, pub.Close())
	mp.AssertExpectations(t)

	require.Len(t, mp.values, 1)
	var got PlayerEvent
	require.NoError(t, json.Unmarshal(mp.values[0], &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, TypeLevelUp, got.Type)
	assert.Equal(t, 4, got.Level)
}

func TestKafkaPublisherRetriesThenGivesUp(t *testing.T) {
	mp := new(MockProducer)
	mp.On("PublishAsync", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	mp.On("Close").Return(nil)

	pub := fastPublisher(mp)
	pub.Publish(context.Background(), New(TypeSaved, "abc123", time.Now()))

	require.NoError(t, pub.Close())
	mp.AssertNumberOfCalls(t, "PublishAsync", 3)
}

func TestKafkaPublisherOutlivesRequestContext(t *testing.T) {
	mp := new(MockProducer)
	mp.On("PublishAsync", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mp.On("Close").Return(nil)

	pub := fastPublisher(mp)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.Publish(ctx, New(TypeRefill, "abc123", time.Now()))

	require.NoError(t, pub.Close())
	mp.AssertNumberOfCalls(t, "PublishAsync", 1)
}

func TestKafkaPublisherCloseError(t *testing.T) {
	mp := new(MockProducer)
	mp.On("Close").Return(errors.New("flush failed"))

	err := fastPublisher(mp).Close()
	assert.ErrorContains(t, err, "flush failed")
}

func TestNewStampsUniqueIDs(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("KST", 9*3600))
	a := New(TypeCreated, "abc123", now)
	b := New(TypeCreated, "abc123", now)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.OccurredAt.Location())
	assert.True(t, a.OccurredAt.Equal(now))
}

func TestDiscard(t *testing.T) {
	var p Publisher = Discard{}
	p.Publish(context.Background(), New(TypeSaved, "abc123", time.Now()))
	assert.NoError(t, p.Close())
}
