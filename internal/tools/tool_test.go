package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuanqi87/agent/internal/gateway"
)

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Arguments
	}{
		{
			name:     "json object",
			raw:      `{"city":"北京","count":3}`,
			expected: Arguments{"city": "北京", "count": float64(3)},
		},
		{
			name:     "bare string falls back to query",
			raw:      "weather in beijing",
			expected: Arguments{"query": "weather in beijing"},
		},
		{
			name:     "json null falls back to query",
			raw:      "null",
			expected: Arguments{"query": "null"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseArguments(tt.raw))
		})
	}
}

func TestArguments_Query(t *testing.T) {
	assert.Equal(t, "a", Arguments{"query": "a"}.Query())
	assert.Equal(t, "b", Arguments{"input": "b"}.Query())
	assert.Equal(t, "c", Arguments{"expression": "c"}.Query())
	assert.Equal(t, "", Arguments{"other": "d"}.Query())
}

func TestArguments_Int(t *testing.T) {
	args := Arguments{"count": float64(5), "name": "x"}

	assert.Equal(t, 5, args.Int("count", 1))
	assert.Equal(t, 1, args.Int("missing", 1))
	assert.Equal(t, 1, args.Int("name", 1))
}

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	assert.Equal(t,
		[]string{"calculator", "current_time", "weather", "web_search", "random_number"},
		registry.Names(),
	)

	schemas := registry.Schemas()
	require.Len(t, schemas, registry.Len())
	for i, name := range registry.Names() {
		assert.Equal(t, name, schemas[i].Function.Name)
		assert.Equal(t, gateway.ToolTypeFunction, schemas[i].Type)
		require.NotNil(t, schemas[i].Function.Parameters)
		assert.NotNil(t, schemas[i].Function.Parameters.Required)
	}
}

func TestRegistry_Execute(t *testing.T) {
	registry := DefaultRegistry()

	out, err := registry.Execute(context.Background(), "calculator", `{"expression":"6*7"}`)
	require.NoError(t, err)
	assert.Equal(t, "6*7 = 42", out)

	// bare string argument reaches the tool through the query fallback
	out, err = registry.Execute(context.Background(), "web_search", "golang sse")
	require.NoError(t, err)
	assert.Contains(t, out, "golang sse")

	_, err = registry.Execute(context.Background(), "nonexistent", "{}")
	assert.Error(t, err)
}

func TestWeather_Invoke(t *testing.T) {
	weather := NewWeather()

	out, err := weather.Invoke(context.Background(), Arguments{"city": "北京"})
	require.NoError(t, err)
	assert.Contains(t, out, "北京")
	assert.Contains(t, out, "15°C")

	out, err = weather.Invoke(context.Background(), Arguments{"city": "atlantis"})
	require.NoError(t, err)
	assert.Contains(t, out, "no weather data")

	_, err = weather.Invoke(context.Background(), Arguments{})
	assert.Error(t, err)
}

func TestClock_Invoke(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)
	clock := &Clock{now: func() time.Time { return fixed }}

	tests := []struct {
		format   string
		expected string
	}{
		{format: "date", expected: "2024-05-01"},
		{format: "time", expected: "20:30:45"}, // Asia/Shanghai is UTC+8
		{format: "timestamp", expected: "1714566645"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := clock.Invoke(context.Background(), Arguments{"format": tt.format})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}

	_, err := clock.Invoke(context.Background(), Arguments{"timezone": "Mars/Olympus"})
	assert.Error(t, err)
}

func TestRandomNumber_Invoke(t *testing.T) {
	fixed := &RandomNumber{intn: func(n int) int { return 0 }}

	out, err := fixed.Invoke(context.Background(), Arguments{"count": float64(3), "min": float64(7), "max": float64(9)})
	require.NoError(t, err)
	assert.Equal(t, "7, 7, 7", out)

	_, err = fixed.Invoke(context.Background(), Arguments{"count": float64(11)})
	assert.Error(t, err)

	_, err = fixed.Invoke(context.Background(), Arguments{"min": float64(5), "max": float64(1)})
	assert.Error(t, err)
}
