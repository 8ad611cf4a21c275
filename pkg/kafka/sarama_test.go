package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

type staticOffsets map[int64]int64

func (o staticOffsets) GetOffset(_ string, _ int32, when int64) (int64, error) {
	off, ok := o[when]
	if !ok {
		return 0, sarama.ErrUnknownTopicOrPartition
	}
	return off, nil
}

func TestSaramaFirstAndLast(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	defer consumer.Close()
	c := newSaramaClient(staticOffsets{sarama.OffsetOldest: 5, sarama.OffsetNewest: 20}, consumer, time.Second)

	first, last, err := c.FirstAndLastOffset(context.Background(), "events", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), first)
	assert.Equal(t, int64(19), last)

	c = newSaramaClient(staticOffsets{}, consumer, time.Second)
	_, _, err = c.FirstAndLastOffset(context.Background(), "events", 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestSaramaFetchMessage(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	defer consumer.Close()
	consumer.ExpectConsumePartition("events", 1, 7).
		YieldMessage(&sarama.ConsumerMessage{Value: []byte(`{"ts": 1}`)})

	c := newSaramaClient(staticOffsets{}, consumer, time.Second)
	msg, err := c.FetchMessage(context.Background(), "events", 1, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), msg.Offset)
	assert.Equal(t, int32(1), msg.Partition)
	assert.JSONEq(t, `{"ts": 1}`, string(msg.Value))
}

func TestSaramaFetchTimeout(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	defer consumer.Close()
	consumer.ExpectConsumePartition("events", 0, 3)

	c := newSaramaClient(staticOffsets{}, consumer, 10*time.Millisecond)
	_, err := c.FetchMessage(context.Background(), "events", 0, 3)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.True(t, errors.IsRetryable(err))
}

func TestClassify(t *testing.T) {
	assert.True(t, errors.IsType(classify(sarama.ErrOffsetOutOfRange, "op"), errors.ErrorTypeNotFound))
	assert.True(t, errors.IsType(classify(sarama.ErrRequestTimedOut, "op"), errors.ErrorTypeTimeout))
	assert.True(t, errors.IsType(classify(sarama.ErrOutOfBrokers, "op"), errors.ErrorTypeConnection))
}

func TestBuildSaramaConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = "2.8.0"
	cfg.SASLMechanism = "PLAIN"
	cfg.SASLUsername = "u"
	cfg.SASLPassword = "p"
	sc, err := buildSaramaConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gridtable", sc.ClientID)
	assert.True(t, sc.Net.SASL.Enable)
	assert.Equal(t, sarama.V2_8_0_0, sc.Version)

	cfg.SASLMechanism = "SCRAM-SHA-512"
	_, err = buildSaramaConfig(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewSaramaClient(Config{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
