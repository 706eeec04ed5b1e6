package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	initial := time.Second
	max := 5 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second}, // 8s capped
		{10, 5 * time.Second},
		{63, 5 * time.Second}, // shift overflow guard
	}

	for _, tt := range tests {
		got := backoffDelay(tt.attempt, initial, max)
		assert.Equal(t, tt.want, got, "attempt %d", tt.attempt)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()

	assert.Equal(t, DefaultHeartbeatInterval, o.HeartbeatInterval)
	assert.Equal(t, DefaultInitialBackoff, o.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, o.MaxBackoff)
	assert.Equal(t, DefaultMaxReconnect, o.MaxReconnect)
	assert.NotNil(t, o.Logger)
	assert.NotNil(t, o.Dialer)
}
