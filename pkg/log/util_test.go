package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name  string
		input []any
	}{
		{"empty input", []any{}},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}},
		{"time type", []any{"t", now}},
		{"float type", []any{"pi", 3.14}},
		{"bytes", []any{"data", []byte("xyz")}},
		{"error only", []any{err}},
		{"multiple errors", []any{err, errors.New("again")}},
		{"mixed field types", []any{"msg", "ok", zap.String("x", "y"), "num", 42}},
		{"odd number of args", []any{"key1", "val1", "key2"}},
		{"non-string key", []any{123, "value", true, 99}},
		{"nil values", []any{"a", nil, "b", (*int)(nil)}},
		{"map value", []any{"a", map[string]string{"xyz": "123"}}},
		{"string slice", []any{"paths", []string{"stdout", "/var/log/agent.log"}}},
		{"duration", []any{"interval", 5 * time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)

			if fields == nil && len(tt.input) > 0 {
				t.Errorf("nil fields for non-empty input: %v", tt.input)
			}

			for _, f := range fields {
				if f.Key == "" {
					t.Errorf("field has empty key: %+v", f)
				}
			}
		})
	}
}

type slot string

func (s slot) String() string { return "slot-" + string(s) }

func TestToFieldsTypes(t *testing.T) {
	err := errors.New("boom")
	fields := toFields("interval", time.Second, "slot", slot("b"), err, "reason", err, "orphan")

	byKey := map[string]zap.Field{}
	for _, f := range fields {
		byKey[f.Key] = f
	}

	assert.Len(t, fields, 5)
	assert.Equal(t, zapcore.DurationType, byKey["interval"].Type)
	assert.Equal(t, zapcore.StringerType, byKey["slot"].Type)
	assert.Equal(t, zapcore.ErrorType, byKey["error"].Type)
	assert.Equal(t, zapcore.ErrorType, byKey["reason"].Type)
	assert.Contains(t, byKey, "arg#7")
}
