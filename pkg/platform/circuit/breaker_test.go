package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_InitialState(t *testing.T) {
	b := New("federation")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "federation", b.Name())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("federation", WithFailureThreshold(3))

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := New("federation", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_AdmitsProbesAfterCooldown(t *testing.T) {
	b := New("federation", WithFailureThreshold(1), WithSuccessThreshold(1), WithCooldown(20*time.Millisecond))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	time.Sleep(30 * time.Millisecond)

	// Cooldown elapsed: half-open, callers may probe the primary again.
	assert.False(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FailedProbeRearmsCooldown(t *testing.T) {
	b := New("federation", WithFailureThreshold(1), WithCooldown(20*time.Millisecond))

	b.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	assert.False(t, b.IsOpen())

	// The probe fails: the circuit blocks callers for another cooldown.
	useFallback, _ := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, b.IsOpen())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("federation", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Counter was reset, so two more failures still don't open.
	useFallback, _ := b.RecordFailure()
	assert.False(t, useFallback)
	useFallback, _ = b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, b.IsOpen())
}
