package circuit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSink = errors.New("sink down")

func TestBreaker(t *testing.T) {
	t.Run("opens after consecutive failures", func(t *testing.T) {
		b := New("audit", WithFailureThreshold(2))

		assert.False(t, b.Record(errSink).Changed())
		tr := b.Record(errSink)

		assert.True(t, tr.Changed())
		assert.Equal(t, StateOpen, tr.To)
		assert.Equal(t, "open", b.State().String())
	})

	t.Run("a success resets the failure count", func(t *testing.T) {
		b := New("audit", WithFailureThreshold(2))

		b.Record(errSink)
		b.Record(nil)
		b.Record(errSink)

		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("open breaker probes periodically", func(t *testing.T) {
		b := New("audit", WithFailureThreshold(1), WithProbeEvery(3))
		b.Record(errSink)

		assert.False(t, b.Allow())
		assert.False(t, b.Allow())
		assert.True(t, b.Allow())
		assert.False(t, b.Allow())
	})

	t.Run("closes after consecutive successes", func(t *testing.T) {
		b := New("audit", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.Record(errSink)

		assert.False(t, b.Record(nil).Changed())
		tr := b.Record(nil)

		assert.Equal(t, Transition{From: StateOpen, To: StateClosed}, tr)
		assert.True(t, b.Allow())
	})

	t.Run("failure while open restarts recovery", func(t *testing.T) {
		b := New("audit", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.Record(errSink)
		b.Record(nil)
		b.Record(errSink)
		b.Record(nil)

		assert.Equal(t, StateOpen, b.State())
	})
}
