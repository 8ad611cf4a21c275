// Package kafka locates the offset of a Kafka partition closest to a data
// timestamp, so streaming cube builds can start from a point in time.
package kafka

import (
	"context"
	"time"

	"github.com/ajitpratap0/gridtable/pkg/retry"
)

// Message is one record fetched from a partition
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	// Timestamp is the broker or producer timestamp, zero when unknown
	Timestamp time.Time
}

// StreamingMessage is a parsed message
type StreamingMessage struct {
	Offset int64
	// Timestamp is the data timestamp in epoch milliseconds
	Timestamp int64
	Fields    map[string]any
}

// Client is the subset of a Kafka client the offset finder needs
type Client interface {
	// FirstAndLastOffset returns the earliest offset and the offset of the
	// newest message. last < first means the partition is empty.
	FirstAndLastOffset(ctx context.Context, topic string, partition int32) (first, last int64, err error)
	// FetchMessage reads the message stored at offset
	FetchMessage(ctx context.Context, topic string, partition int32, offset int64) (*Message, error)
}

// Parser turns a raw message into a StreamingMessage
type Parser interface {
	Parse(msg *Message) (*StreamingMessage, error)
}

// Config contains Kafka connection and parsing settings
type Config struct {
	Brokers               []string      `yaml:"brokers"`
	Topic                 string        `yaml:"topic"`
	ClientID              string        `yaml:"client_id"`
	Version               string        `yaml:"version"`
	SecurityProtocol      string        `yaml:"security_protocol"`
	SASLMechanism         string        `yaml:"sasl_mechanism"`
	SASLUsername          string        `yaml:"sasl_username"`
	SASLPassword          string        `yaml:"sasl_password"`
	TLSInsecureSkipVerify bool          `yaml:"tls_insecure_skip_verify"`
	DialTimeout           time.Duration `yaml:"dial_timeout"`
	FetchTimeout          time.Duration `yaml:"fetch_timeout"`

	// TimestampField names the JSON field holding the data timestamp
	TimestampField string `yaml:"timestamp_field"`
	// TimestampLayout parses string timestamps; empty means epoch millis
	TimestampLayout string `yaml:"timestamp_layout"`

	Retry *retry.Policy `yaml:"retry"`
}

// DefaultConfig returns settings for a local broker
func DefaultConfig() Config {
	return Config{
		Brokers:        []string{"localhost:9092"},
		ClientID:       "gridtable",
		DialTimeout:    10 * time.Second,
		FetchTimeout:   10 * time.Second,
		TimestampField: "timestamp",
		Retry:          retry.DefaultPolicy(),
	}
}
