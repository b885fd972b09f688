package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jst = time.FixedZone("JST", 9*60*60)

func at(h, m, s int) time.Time {
	return time.Date(2024, 3, 1, h, m, s, 0, jst)
}

func TestBarAggregator_SameMinuteUpdatesOHLCV(t *testing.T) {
	a := NewBarAggregator(jst)

	for _, tk := range []Tick{
		{Price: 100, Volume: 5, Time: at(9, 0, 1)},
		{Price: 105, Volume: -3, Time: at(9, 0, 20)},
		{Price: 98, Volume: 2, Time: at(9, 0, 40)},
		{Price: 101, Volume: 1, Time: at(9, 0, 59)},
	} {
		done, err := a.Add(tk)
		require.NoError(t, err)
		assert.Nil(t, done)
	}

	bar, ok := a.Active()
	require.True(t, ok)
	assert.Equal(t, at(9, 0, 0), bar.Time)
	assert.Equal(t, int64(100), bar.Open)
	assert.Equal(t, int64(105), bar.High)
	assert.Equal(t, int64(98), bar.Low)
	assert.Equal(t, int64(101), bar.Close)
	assert.Equal(t, int64(11), bar.Volume, "売り約定の負の出来高も絶対値で足す")
}

func TestBarAggregator_RolloverConfirmsPreviousBar(t *testing.T) {
	a := NewBarAggregator(jst)

	_, err := a.Add(Tick{Price: 100, Volume: 1, Time: at(9, 0, 10)})
	require.NoError(t, err)
	_, err = a.Add(Tick{Price: 110, Volume: 2, Time: at(9, 0, 50)})
	require.NoError(t, err)

	done, err := a.Add(Tick{Price: 107, Volume: 4, Time: at(9, 1, 0)})
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, Bar{Time: at(9, 0, 0), Open: 100, High: 110, Low: 100, Close: 110, Volume: 3}, *done)

	active, ok := a.Active()
	require.True(t, ok)
	assert.Equal(t, Bar{Time: at(9, 1, 0), Open: 107, High: 107, Low: 107, Close: 107, Volume: 4}, active)
}

func TestBarAggregator_SkippedMinutesProduceSingleBar(t *testing.T) {
	a := NewBarAggregator(jst)

	_, _ = a.Add(Tick{Price: 100, Volume: 1, Time: at(9, 0, 10)})
	done, err := a.Add(Tick{Price: 120, Volume: 1, Time: at(9, 5, 0)})
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, at(9, 0, 0), done.Time)

	active, _ := a.Active()
	assert.Equal(t, at(9, 5, 0), active.Time)
}

func TestBarAggregator_InvalidPriceLeavesStateUntouched(t *testing.T) {
	a := NewBarAggregator(jst)

	done, err := a.Add(Tick{Price: 0, Volume: 1, Time: at(9, 0, 0)})
	assert.ErrorIs(t, err, ErrInvalidTick)
	assert.Nil(t, done)
	_, ok := a.Active()
	assert.False(t, ok)

	_, _ = a.Add(Tick{Price: 100, Volume: 1, Time: at(9, 0, 0)})
	_, err = a.Add(Tick{Price: -5, Volume: 9, Time: at(9, 1, 0)})
	assert.ErrorIs(t, err, ErrInvalidTick)

	active, _ := a.Active()
	assert.Equal(t, Bar{Time: at(9, 0, 0), Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}, active)
}

func TestBarAggregator_SeedContinuesHistoricalBar(t *testing.T) {
	a := NewBarAggregator(jst)
	a.Seed(Bar{Time: at(9, 0, 0), Open: 100, High: 102, Low: 99, Close: 101, Volume: 50})

	done, err := a.Add(Tick{Price: 103, Volume: 5, Time: at(9, 0, 30)})
	require.NoError(t, err)
	assert.Nil(t, done)

	done, err = a.Add(Tick{Price: 104, Volume: 1, Time: at(9, 1, 0)})
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, Bar{Time: at(9, 0, 0), Open: 100, High: 103, Low: 99, Close: 103, Volume: 55}, *done)
}

func TestBarAggregator_MinuteBoundaryUsesLocation(t *testing.T) {
	a := NewBarAggregator(jst)

	// 00:00:30 UTC = 09:00:30 JST
	_, err := a.Add(Tick{Price: 100, Volume: 1, Time: time.Date(2024, 3, 1, 0, 0, 30, 0, time.UTC)})
	require.NoError(t, err)

	active, _ := a.Active()
	assert.True(t, active.Time.Equal(at(9, 0, 0)))
}
