package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/logger"
	"github.com/ajitpratap0/gridtable/pkg/retry"
)

// OffsetFinder binary-searches a partition for the offset whose data
// timestamp is closest to a target. Partitions are assumed to be roughly
// ordered by data timestamp.
type OffsetFinder struct {
	client Client
	parser Parser
	topic  string
	policy *retry.Policy
	logger *zap.Logger
}

// FinderOption configures an OffsetFinder
type FinderOption func(*OffsetFinder)

// WithRetryPolicy replaces the default six-attempt policy
func WithRetryPolicy(p *retry.Policy) FinderOption {
	return func(f *OffsetFinder) { f.policy = p }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) FinderOption {
	return func(f *OffsetFinder) { f.logger = l }
}

// NewOffsetFinder creates a finder over topic
func NewOffsetFinder(client Client, parser Parser, topic string, opts ...FinderOption) *OffsetFinder {
	f := &OffsetFinder{
		client: client,
		parser: parser,
		topic:  topic,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.policy == nil {
		f.policy = retry.DefaultPolicy()
	}
	if f.logger == nil {
		f.logger = logger.Get()
	}
	f.logger = f.logger.With(zap.String("topic", topic))
	return f
}

// FindClosestOffset returns the offset in partition whose data timestamp is
// closest to ts (epoch millis). Offsets before the first message with a
// timestamp >= ts are never returned unless ts is past the newest message.
func (f *OffsetFinder) FindClosestOffset(ctx context.Context, partition int32, ts int64) (int64, error) {
	var first, last int64
	err := f.policy.Do(ctx, "first and last offset", func(ctx context.Context) error {
		var err error
		first, last, err = f.client.FirstAndLastOffset(ctx, f.topic, partition)
		return err
	})
	if err != nil {
		return 0, err
	}

	f.logger.Info("searching closest offset",
		zap.Int32("partition", partition),
		zap.Int64("timestamp", ts),
		zap.Int64("first_offset", first),
		zap.Int64("last_offset", last),
	)
	offset, err := f.binarySearch(ctx, partition, first, last, ts)
	if err != nil {
		return 0, err
	}
	f.logger.Info("found closest offset", zap.Int32("partition", partition), zap.Int64("offset", offset))
	return offset, nil
}

func (f *OffsetFinder) binarySearch(ctx context.Context, partition int32, start, end, target int64) (int64, error) {
	memo := make(map[int64]int64)
	at := func(offset int64) (int64, error) {
		if ts, ok := memo[offset]; ok {
			return ts, nil
		}
		ts, err := f.timestampAt(ctx, partition, offset)
		if err != nil {
			return 0, err
		}
		memo[offset] = ts
		return ts, nil
	}

	for start < end {
		mid := start + (end-start)/2
		startTS, err := at(start)
		if err != nil {
			return 0, err
		}
		endTS, err := at(end)
		if err != nil {
			return 0, err
		}
		midTS, err := at(mid)
		if err != nil {
			return 0, err
		}

		switch {
		case startTS >= target:
			return start, nil
		case endTS <= target:
			return end, nil
		case midTS == target:
			return mid, nil
		case target < midTS:
			end = mid - 1
		default:
			start = mid + 1
		}
	}
	return start, nil
}

func (f *OffsetFinder) timestampAt(ctx context.Context, partition int32, offset int64) (int64, error) {
	var msg *Message
	err := f.policy.Do(ctx, "fetch message", func(ctx context.Context) error {
		var err error
		msg, err = f.client.FetchMessage(ctx, f.topic, partition, offset)
		return err
	})
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrorTypeConnection,
			"get timestamp of topic %s partition %d offset %d", f.topic, partition, offset)
	}

	sm, err := f.parser.Parse(msg)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrorTypeData, "parse message at offset %d", offset)
	}
	f.logger.Debug("message timestamp",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.Int64("timestamp", sm.Timestamp),
	)
	return sm.Timestamp, nil
}
