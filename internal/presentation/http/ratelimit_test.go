package httppresentation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiterCapsTrackedClients(t *testing.T) {
	l := newIPLimiter(0.001, 1)
	l.maxSize = 2

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
	// new clients past the cap draw from one shared bucket
	assert.True(t, l.allow("10.0.0.3"))
	assert.False(t, l.allow("10.0.0.4"))
	assert.Equal(t, 2, l.tracked())

	assert.False(t, l.allow("10.0.0.1"))
}

func TestIPLimiterSweepsIdleClients(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPLimiter(0.001, 1)
	l.now = func() time.Time { return clock }
	l.lastSweep = clock
	l.maxSize = 2

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))

	clock = clock.Add(limiterIdleTTL + limiterSweepInterval)
	assert.True(t, l.allow("10.0.0.3"))
	assert.Equal(t, 1, l.tracked())

	// swept clients start over with a full bucket
	assert.True(t, l.allow("10.0.0.1"))
}
