// Package config defines the configuration of a gridtable deployment.
//
// The configuration is organized into sections:
//   - Table: schema, column blocks and row-block size
//   - Aggregation: aggregation-cache memory cap
//   - Compression: row-block payload compression
//   - Logging, Metrics and Tracing: observability
//   - Kafka: offset lookup over a streaming source
//
// Example usage:
//
//	cfg, err := config.Load("gridtable.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	info, err := cfg.Table.BuildInfo()
package config

import (
	"github.com/ajitpratap0/gridtable/pkg/codesystem"
	"github.com/ajitpratap0/gridtable/pkg/compression"
	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/dictionary"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/kafka"
	"github.com/ajitpratap0/gridtable/pkg/logger"
)

// Config is the root configuration
type Config struct {
	Table       TableConfig        `yaml:"table"`
	Aggregation AggregationConfig  `yaml:"aggregation"`
	Compression compression.Config `yaml:"compression"`
	Logging     logger.Config      `yaml:"logging"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Tracing     TracingConfig      `yaml:"tracing"`
	Kafka       kafka.Config       `yaml:"kafka"`
}

// TableConfig describes one grid table
type TableConfig struct {
	// Name labels logs and metrics
	Name string `yaml:"name"`
	// Columns lists the column type names in column order
	Columns []string `yaml:"columns"`
	// PrimaryKey lists the primary-key column indexes
	PrimaryKey []int `yaml:"primary_key"`
	// ColumnBlocks partitions the columns; empty means one block
	ColumnBlocks [][]int `yaml:"column_blocks"`
	// RowBlockSize caps the rows per block; 0 means unbounded
	RowBlockSize int `yaml:"row_block_size"`
	// MaxRecordLength overrides the derived limit when positive
	MaxRecordLength int `yaml:"max_record_length"`
	// VarcharMaxLength bounds varchar columns of the sample code system
	VarcharMaxLength int `yaml:"varchar_max_length"`
	// DictionaryColumns lists varchar columns stored as dictionary ids
	DictionaryColumns []int `yaml:"dictionary_columns"`
}

// AggregationConfig controls the aggregating scanner
type AggregationConfig struct {
	// MemoryCapBytes bounds the projected size of one aggregation cache
	MemoryCapBytes int64 `yaml:"memory_cap_bytes"`
}

// MetricsConfig controls the Prometheus collector
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	// Exporter is "stdout" or "none"
	Exporter    string `yaml:"exporter"`
	PrettyPrint bool   `yaml:"pretty_print"`
}

// Default returns a configuration with every section at its default
func Default() *Config {
	return &Config{
		Table: TableConfig{
			Name:             "gridtable",
			VarcharMaxLength: codesystem.DefaultVarcharMaxLength,
		},
		Aggregation: AggregationConfig{
			MemoryCapBytes: gridtable.DefaultMemoryCap,
		},
		Compression: *compression.DefaultConfig(),
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			ServiceName: "gridtable",
			Exporter:    "stdout",
		},
		Kafka: kafka.DefaultConfig(),
	}
}

// Validate checks ranges and names. Table columns are only checked when
// present so Kafka-only configurations stay valid.
func (c *Config) Validate() error {
	if c.Aggregation.MemoryCapBytes <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "aggregation.memory_cap_bytes must be positive, got %d", c.Aggregation.MemoryCapBytes)
	}
	if _, err := compression.ParseAlgorithm(string(c.Compression.Algorithm)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "compression.algorithm")
	}
	switch c.Tracing.Exporter {
	case "", "stdout", "none":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown tracing exporter %q", c.Tracing.Exporter)
	}
	if c.Kafka.Retry != nil && c.Kafka.Retry.MaxAttempts < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "kafka.retry.max_attempts must be at least 1, got %d", c.Kafka.Retry.MaxAttempts)
	}
	return c.Table.Validate()
}

// Validate checks the table section
func (t *TableConfig) Validate() error {
	if t.RowBlockSize < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "table.row_block_size must not be negative, got %d", t.RowBlockSize)
	}
	if t.MaxRecordLength < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "table.max_record_length must not be negative, got %d", t.MaxRecordLength)
	}
	for i, name := range t.Columns {
		if _, err := datatype.Parse(name); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "table.columns[%d]", i)
		}
	}
	for _, c := range t.DictionaryColumns {
		if c < 0 || c >= len(t.Columns) {
			return errors.Newf(errors.ErrorTypeConfig, "table.dictionary_columns: column %d is not declared", c)
		}
	}
	if len(t.Columns) > 0 && len(t.PrimaryKey) == 0 {
		return errors.New(errors.ErrorTypeConfig, "table.primary_key is required when columns are declared")
	}
	return nil
}

// BuildInfo builds the table schema with the sample code system
func (t *TableConfig) BuildInfo() (*gridtable.Info, error) {
	return t.BuildInfoWithDictionaries(nil)
}

// BuildInfoWithDictionaries builds the table schema, storing the columns of
// dicts as dictionary ids over the sample code system.
func (t *TableConfig) BuildInfoWithDictionaries(dicts map[int]dictionary.Dictionary) (*gridtable.Info, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	types := make([]datatype.DataType, len(t.Columns))
	for i, name := range t.Columns {
		types[i] = datatype.MustParse(name)
	}

	var opts []codesystem.SampleOption
	if t.VarcharMaxLength > 0 {
		opts = append(opts, codesystem.WithVarcharMaxLength(t.VarcharMaxLength))
	}
	var cs gridtable.CodeSystem = codesystem.NewSample(opts...)
	if len(dicts) > 0 {
		cs = codesystem.NewDictionary(cs, dicts)
	}
	b := gridtable.NewInfoBuilder().
		SetCodeSystem(cs).
		SetColumns(types...).
		SetPrimaryKey(gridtable.NewColumnSet(t.PrimaryKey...)).
		EnableRowBlock(t.RowBlockSize).
		SetMaxRecordLength(t.MaxRecordLength)
	if len(t.ColumnBlocks) > 0 {
		blocks := make([]gridtable.ColumnSet, len(t.ColumnBlocks))
		for i, cols := range t.ColumnBlocks {
			blocks[i] = gridtable.NewColumnSet(cols...)
		}
		b.EnableColumnBlock(blocks...)
	}
	return b.Build()
}
