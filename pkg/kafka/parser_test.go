package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

func TestJSONParser(t *testing.T) {
	at := time.Date(2015, 1, 14, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		name   string
		parser *JSONParser
		msg    *Message
		want   int64
	}{
		{"number", NewJSONParser("ts", ""), &Message{Value: []byte(`{"ts": 1421224200000, "v": 1}`)}, at.UnixMilli()},
		{"float", NewJSONParser("ts", ""), &Message{Value: []byte(`{"ts": 1421224200000.0}`)}, at.UnixMilli()},
		{"string millis", NewJSONParser("ts", ""), &Message{Value: []byte(`{"ts": "1421224200000"}`)}, at.UnixMilli()},
		{"layout", NewJSONParser("when", time.RFC3339), &Message{Value: []byte(`{"when": "2015-01-14T08:30:00Z"}`)}, at.UnixMilli()},
		{"fallback", NewJSONParser("ts", ""), &Message{Value: []byte(`{}`), Timestamp: at}, at.UnixMilli()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.msg.Offset = 9
			sm, err := tt.parser.Parse(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sm.Timestamp)
			assert.Equal(t, int64(9), sm.Offset)
		})
	}
}

func TestJSONParserErrors(t *testing.T) {
	p := NewJSONParser("ts", "")
	for name, value := range map[string]string{
		"invalid json": `{`,
		"missing":      `{"other": 1}`,
		"bool":         `{"ts": true}`,
		"bad string":   `{"ts": "yesterday"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse(&Message{Value: []byte(value)})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData))
		})
	}
}
