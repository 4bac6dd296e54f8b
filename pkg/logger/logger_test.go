package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{Format: "json"}, &buf)
	l.Info().Str("run_id", "r1").Msg("开始生成课表")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "r1", line["run_id"])
	assert.Equal(t, "开始生成课表", line["message"])
	assert.Contains(t, line, "time")
}

func TestWithContextAddsRequestID(t *testing.T) {
	Get()
	var buf bytes.Buffer
	saved := logger
	logger = newLogger(Config{Format: "json"}, &buf)
	t.Cleanup(func() { logger = saved })

	ctx := context.WithValue(context.Background(), RequestIDKey, "req_abc")
	WithContext(ctx).Info().Msg("请求完成")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req_abc", line["request_id"])
}
