package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerBindLifecycle(t *testing.T) {
	log := newTestLogger()

	c := NewConsumer(log, NewMax())

	assert.False(t, c.Bound())
	assert.ErrorIs(t, c.Consume(1), ErrNotBound)
	assert.ErrorIs(t, c.ConsumeStat("aux", 1), ErrNotBound)

	m, err := NewMeasurement("latency", "ms", nil, nil)
	require.NoError(t, err)

	require.NoError(t, c.Bind(m))
	assert.True(t, c.Bound())
	assert.Equal(t, m, c.Measurement())

	other, err := NewMeasurement("other", "ms", nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Bind(other), ErrAlreadyBound)

	fresh := NewConsumer(log, NewMax())
	assert.ErrorIs(t, fresh.Bind(nil), ErrNilMeasurement)
}

func TestConsumerDefaultReducerSet(t *testing.T) {
	log := newTestLogger()

	c := NewConsumer(log)
	m, err := NewMeasurement("latency", "ms", nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.Bind(m))

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Consume(42))
	}

	results := c.Results()
	assert.Equal(t, 42.0, results["max"])
	assert.Equal(t, 42.0, results["min"])
	assert.InDelta(t, 42.0, results["mean"], 1e-9)
	assert.Equal(t, 42.0, results["p50"])
	assert.Equal(t, 42.0, results["p90"])
	assert.Equal(t, 42.0, results["p99"])
	assert.Equal(t, 5, c.Samples())
}

func TestConsumerRejectsNonFinite(t *testing.T) {
	log := newTestLogger()

	c := NewConsumer(log, NewMax())
	m, err := NewMeasurement("latency", "ms", nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.Bind(m))

	require.NoError(t, c.Consume(1))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		var invalid *InvalidSampleError
		require.ErrorAs(t, c.Consume(v), &invalid)
	}

	// Rejected samples never reach the reducers.
	assert.Equal(t, 1, c.Samples())
	assert.Equal(t, 1.0, c.Results()["max"])
}

func TestConsumerDirectStats(t *testing.T) {
	log := newTestLogger()

	c := NewConsumer(log, NewMax())
	m, err := NewMeasurement("snapshot", "ms", nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.Bind(m))

	require.NoError(t, c.ConsumeStat("restore_latency", 12.5))
	require.NoError(t, c.ConsumeStat("restore_latency", 13.5))
	assert.ErrorIs(t, c.ConsumeStat("max", 1), ErrReservedStatistic)
	assert.ErrorIs(t, c.ConsumeStat("", 1), ErrEmptyName)

	var invalid *InvalidSampleError
	require.ErrorAs(t, c.ConsumeStat("bad", math.NaN()), &invalid)

	require.NoError(t, c.Consume(7))

	results := c.Results()
	assert.Equal(t, 13.5, results["restore_latency"], "later direct writes overwrite earlier ones")
	assert.Equal(t, 7.0, results["max"])

	assert.True(t, c.HasStatistic("max"))
	assert.True(t, c.HasStatistic("restore_latency"))
	assert.False(t, c.HasStatistic("median"))
	assert.Equal(t, []string{"max", "restore_latency"}, c.Statistics())
}

func TestConsumerPartialResults(t *testing.T) {
	log := newTestLogger()

	c := NewConsumer(log, NewMax(), NewMean())
	m, err := NewMeasurement("latency", "ms", nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.Bind(m))

	// Mid-stream results stay well formed for early-abort diagnostics.
	assert.Empty(t, c.Results())

	require.NoError(t, c.Consume(10))
	results := c.Results()
	assert.Equal(t, 10.0, results["max"])
	assert.Equal(t, 10.0, results["mean"])

	require.NoError(t, c.Consume(30))
	results = c.Results()
	assert.Equal(t, 30.0, results["max"])
	assert.InDelta(t, 20.0, results["mean"], 1e-9)
}
