package kafka

import (
	"bytes"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

// JSONParser reads JSON object messages and takes the data timestamp from
// one field. Numbers are epoch milliseconds; strings are parsed with Layout,
// or as epoch milliseconds when Layout is empty. Messages without the field
// fall back to the message timestamp.
type JSONParser struct {
	Field  string
	Layout string
}

// NewJSONParser creates a parser reading field
func NewJSONParser(field, layout string) *JSONParser {
	return &JSONParser{Field: field, Layout: layout}
}

// Parse implements Parser
func (p *JSONParser) Parse(msg *Message) (*StreamingMessage, error) {
	fields := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(msg.Value))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeData, "decode message at offset %d", msg.Offset)
	}

	sm := &StreamingMessage{Offset: msg.Offset, Fields: fields}
	raw, ok := fields[p.Field]
	if !ok || raw == nil {
		if msg.Timestamp.IsZero() {
			return nil, errors.Newf(errors.ErrorTypeData, "message at offset %d has no %q field", msg.Offset, p.Field)
		}
		sm.Timestamp = msg.Timestamp.UnixMilli()
		return sm, nil
	}

	ts, err := p.timestamp(raw)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeData, "field %q at offset %d", p.Field, msg.Offset)
	}
	sm.Timestamp = ts
	return sm, nil
}

func (p *JSONParser) timestamp(raw any) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case string:
		if p.Layout == "" {
			return strconv.ParseInt(v, 10, 64)
		}
		t, err := time.Parse(p.Layout, v)
		if err != nil {
			return 0, err
		}
		return t.UnixMilli(), nil
	default:
		return 0, errors.Newf(errors.ErrorTypeData, "unsupported timestamp type %T", raw)
	}
}
