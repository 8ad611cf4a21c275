package kafka

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/logger"
)

type offsetGetter interface {
	GetOffset(topic string, partitionID int32, time int64) (int64, error)
}

// SaramaClient implements Client with IBM/sarama. Every fetch opens a
// partition consumer at the requested offset and reads one message.
type SaramaClient struct {
	offsets      offsetGetter
	consumer     sarama.Consumer
	closer       func() error
	fetchTimeout time.Duration
	logger       *zap.Logger
}

var _ Client = (*SaramaClient)(nil)

// NewSaramaClient connects to the brokers of cfg
func NewSaramaClient(cfg Config) (*SaramaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "at least one broker is required")
	}
	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "create Kafka client")
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "create Kafka consumer")
	}

	c := newSaramaClient(client, consumer, cfg.FetchTimeout)
	c.closer = func() error {
		cerr := consumer.Close()
		if err := client.Close(); err != nil {
			return err
		}
		return cerr
	}
	c.logger.Info("connected to Kafka", zap.Strings("brokers", cfg.Brokers))
	return c, nil
}

func newSaramaClient(offsets offsetGetter, consumer sarama.Consumer, fetchTimeout time.Duration) *SaramaClient {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &SaramaClient{
		offsets:      offsets,
		consumer:     consumer,
		closer:       consumer.Close,
		fetchTimeout: fetchTimeout,
		logger:       logger.With(zap.String("component", "kafka_client")),
	}
}

func buildSaramaConfig(cfg Config) (*sarama.Config, error) {
	config := sarama.NewConfig()
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "kafka version %q", cfg.Version)
		}
		config.Version = v
	}
	if cfg.DialTimeout > 0 {
		config.Net.DialTimeout = cfg.DialTimeout
	}
	config.Consumer.Return.Errors = true
	config.Metadata.Retry.Max = 0

	if cfg.SecurityProtocol == "SASL_SSL" || cfg.SecurityProtocol == "SSL" {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = &tls.Config{
			InsecureSkipVerify: cfg.TLSInsecureSkipVerify, //nolint:gosec // G402: opt-in for test clusters
		}
	}

	if cfg.SASLMechanism != "" {
		config.Net.SASL.Enable = true
		config.Net.SASL.User = cfg.SASLUsername
		config.Net.SASL.Password = cfg.SASLPassword

		switch cfg.SASLMechanism {
		case "PLAIN":
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		default:
			return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported SASL mechanism %q", cfg.SASLMechanism)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid sarama configuration")
	}
	return config, nil
}

// FirstAndLastOffset implements Client
func (c *SaramaClient) FirstAndLastOffset(_ context.Context, topic string, partition int32) (int64, int64, error) {
	first, err := c.offsets.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, classify(err, "get earliest offset")
	}
	latest, err := c.offsets.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, classify(err, "get latest offset")
	}
	return first, latest - 1, nil
}

// FetchMessage implements Client
func (c *SaramaClient) FetchMessage(ctx context.Context, topic string, partition int32, offset int64) (*Message, error) {
	pc, err := c.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, classify(err, "consume partition")
	}
	defer func() {
		if err := pc.Close(); err != nil {
			c.logger.Debug("closing partition consumer", zap.Error(err))
		}
	}()

	timer := time.NewTimer(c.fetchTimeout)
	defer timer.Stop()

	select {
	case m, ok := <-pc.Messages():
		if !ok {
			return nil, errors.New(errors.ErrorTypeConnection, "partition consumer closed")
		}
		return &Message{
			Topic:     topic,
			Partition: partition,
			Offset:    offset,
			Key:       m.Key,
			Value:     m.Value,
			Timestamp: m.Timestamp,
		}, nil
	case cerr, ok := <-pc.Errors():
		if !ok || cerr == nil {
			return nil, errors.New(errors.ErrorTypeConnection, "partition consumer closed")
		}
		return nil, classify(cerr.Err, "fetch message")
	case <-timer.C:
		return nil, errors.Newf(errors.ErrorTypeTimeout, "no message at offset %d within %s", offset, c.fetchTimeout)
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "fetch message")
	}
}

// Close releases the consumer and the client
func (c *SaramaClient) Close() error {
	return c.closer()
}

// classify maps sarama errors onto the error taxonomy. Offsets outside the
// partition are permanent; everything else is treated as transient.
func classify(err error, op string) error {
	switch {
	case stderrors.Is(err, sarama.ErrOffsetOutOfRange):
		return errors.Wrap(err, errors.ErrorTypeNotFound, op)
	case stderrors.Is(err, sarama.ErrUnknownTopicOrPartition):
		return errors.Wrap(err, errors.ErrorTypeNotFound, op)
	case stderrors.Is(err, sarama.ErrRequestTimedOut):
		return errors.Wrap(err, errors.ErrorTypeTimeout, op)
	default:
		return errors.Wrap(err, errors.ErrorTypeConnection, op)
	}
}
