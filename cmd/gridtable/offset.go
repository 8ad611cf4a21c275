package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/kafka"
)

func newOffsetCommand(configFile *string) *cobra.Command {
	var (
		topic     string
		brokers   []string
		partition int32
		timestamp string
	)

	cmd := &cobra.Command{
		Use:   "offset",
		Short: "Find the Kafka offset closest to a data timestamp",
		Long: `Binary-search one partition for the offset whose message timestamp, read
from the configured JSON field, is closest to the given time.

Example:
  gridtable offset --topic sales --partition 0 --timestamp 2015-01-15T00:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, *configFile, "offset", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.close(context.Background())

			kcfg := env.cfg.Kafka
			if topic != "" {
				kcfg.Topic = topic
			}
			if len(brokers) > 0 {
				kcfg.Brokers = brokers
			}
			ts, err := parseTimestamp(timestamp)
			if err != nil {
				return err
			}

			client, err := kafka.NewSaramaClient(kcfg)
			if err != nil {
				return err
			}
			defer client.Close()
			return runOffset(ctx, env, cmd.OutOrStdout(), client, kcfg, partition, ts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&topic, "topic", "t", "", "Topic to search (default from configuration)")
	f.StringSliceVar(&brokers, "brokers", nil, "Broker addresses (default from configuration)")
	f.Int32VarP(&partition, "partition", "p", 0, "Partition to search")
	f.StringVar(&timestamp, "timestamp", "", "Target time as epoch millis, RFC 3339 or \"2006-01-02 15:04:05\" (required)")
	_ = cmd.MarkFlagRequired("timestamp")
	return cmd
}

func runOffset(ctx context.Context, env *environment, out io.Writer, client kafka.Client, kcfg kafka.Config, partition int32, ts int64) error {
	if kcfg.Topic == "" {
		return errors.New(errors.ErrorTypeConfig, "no topic configured")
	}
	finder := kafka.NewOffsetFinder(client,
		kafka.NewJSONParser(kcfg.TimestampField, kcfg.TimestampLayout),
		kcfg.Topic,
		kafka.WithRetryPolicy(kcfg.Retry),
		kafka.WithLogger(env.log),
	)
	offset, err := finder.FindClosestOffset(ctx, partition, ts)
	if err != nil {
		return err
	}
	env.log.Debug("closest offset found", zap.Int32("partition", partition), zap.Int64("offset", offset))
	_, err = fmt.Fprintln(out, offset)
	return err
}

// parseTimestamp reads epoch millis, RFC 3339 or the timestamp column layout
func parseTimestamp(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range []string{time.RFC3339Nano, datatype.TimestampLayout, datatype.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, errors.Newf(errors.ErrorTypeConfig, "cannot parse timestamp %q", s)
}
