package bloomgo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountingFilter(t *testing.T) {
	t.Run("AddAndLookup", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		cf.AddString("asdf")
		assert.True(t, cf.LookupString("asdf"))
		assert.False(t, cf.LookupString("baz"))
	})

	t.Run("CountTracksAdds", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		cf.AddString("asdf")
		cf.AddString("asdf")
		cf.AddString("asdf")

		assert.Equal(t, uint64(3), cf.CountString("asdf"))
		assert.Zero(t, cf.CountString("baz"))
	})

	t.Run("RemoveDecrements", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		cf.AddString("asdf")
		cf.AddString("asdf")

		assert.True(t, cf.RemoveString("asdf"))
		assert.Equal(t, uint64(1), cf.CountString("asdf"))
		assert.True(t, cf.LookupString("asdf"))

		assert.True(t, cf.RemoveString("asdf"))
		assert.False(t, cf.LookupString("asdf"))
		assert.Zero(t, cf.CountString("asdf"))
	})

	t.Run("RemoveAbsentIsAllOrNothing", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		cf.AddString("asdf")

		// Removing an element that was never added must not disturb the
		// counters of elements that were.
		assert.False(t, cf.RemoveString("baz"))
		assert.Equal(t, uint64(1), cf.CountString("asdf"))
		assert.True(t, cf.LookupString("asdf"))
	})

	t.Run("LookupOrAdd", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		assert.False(t, cf.LookupOrAdd([]byte("asdf")))
		assert.True(t, cf.LookupOrAdd([]byte("asdf")))
		assert.Equal(t, uint64(2), cf.Count([]byte("asdf")))
	})

	t.Run("NarrowCountersSaturate", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01, WithCounterWidth(CounterWidth4))
		require.NoError(t, err)
		assert.Equal(t, CounterWidth4, cf.CounterWidth())

		for i := 0; i < 20; i++ {
			cf.AddString("asdf")
		}

		// Counters stop at the 4-bit ceiling instead of wrapping.
		assert.Equal(t, uint64(15), cf.CountString("asdf"))
		assert.True(t, cf.LookupString("asdf"))
	})

	t.Run("InvalidCounterWidth", func(t *testing.T) {
		_, err := NewCountingFilter(15, 0.01, WithCounterWidth(CounterWidth(3)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidParameter))
	})

	t.Run("BufferBytes", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)
		assert.Equal(t, uint64(144), cf.BufferBytes())

		cf4, err := NewCountingFilter(15, 0.01, WithCounterWidth(CounterWidth4))
		require.NoError(t, err)
		assert.Equal(t, uint64(72), cf4.BufferBytes())
	})

	t.Run("Clear", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		cf.AddString("asdf")
		cf.Clear()

		assert.False(t, cf.LookupString("asdf"))
		assert.Zero(t, cf.SaturationCount())
	})

	t.Run("AverageCount", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		assert.Zero(t, cf.AverageCount())

		cf.AddString("asdf")
		cf.AddString("asdf")

		// Only one element was added twice, so every occupied slot holds
		// two unless positions collide.
		assert.InDelta(t, 2.0, cf.AverageCount(), 0.5)
	})

	t.Run("Close", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		cf.AddString("asdf")
		require.NoError(t, cf.Close())
		require.NoError(t, cf.Close())

		assert.False(t, cf.LookupString("asdf"))
		assert.Zero(t, cf.CountString("asdf"))
		assert.False(t, cf.RemoveString("asdf"))
		cf.AddString("bar") // must not panic

		_, err = cf.ApplyExponentialDecay(0.5)
		assert.True(t, errors.Is(err, ErrClosed))
	})
}

func TestCountingFilterLinearDecay(t *testing.T) {
	cf, err := NewCountingFilter(15, 0.01)
	require.NoError(t, err)

	cf.AddString("asdf")
	cf.AddString("asdf")
	cf.AddString("asdf")

	changed := cf.ApplyLinearDecay(2)
	assert.Greater(t, changed, uint64(0))
	assert.Equal(t, uint64(1), cf.CountString("asdf"))

	cf.ApplyLinearDecay(5)
	assert.False(t, cf.LookupString("asdf"))

	assert.Zero(t, cf.ApplyLinearDecay(0))
}

func TestCountingFilterExponentialDecay(t *testing.T) {
	t.Run("HalvesCounters", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			cf.AddString("asdf")
		}

		changed, err := cf.ApplyExponentialDecay(0.5)
		require.NoError(t, err)
		assert.Greater(t, changed, uint64(0))
		assert.Equal(t, uint64(2), cf.CountString("asdf"))
	})

	t.Run("ZeroFactorClears", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		cf.AddString("asdf")

		_, err = cf.ApplyExponentialDecay(0)
		require.NoError(t, err)
		assert.False(t, cf.LookupString("asdf"))
	})

	t.Run("FactorOutOfRange", func(t *testing.T) {
		cf, err := NewCountingFilter(15, 0.01)
		require.NoError(t, err)

		for _, factor := range []float64{-0.1, 1.5} {
			_, err := cf.ApplyExponentialDecay(factor)
			require.Error(t, err, "factor %v", factor)
			assert.True(t, errors.Is(err, ErrInvalidParameter))
		}
	})
}

func TestCountingFilterMetrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	cf, err := NewCountingFilter(15, 0.01, WithMetricsCollector(metrics))
	require.NoError(t, err)

	cf.AddString("asdf")
	cf.RemoveString("asdf")
	cf.RemoveString("asdf")

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.AddCount)
	assert.Equal(t, int64(2), stats.RemoveCount)
	assert.Equal(t, int64(1), stats.RemoveMisses)
}
