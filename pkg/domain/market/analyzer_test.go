package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzer_TracksLastValidPrice(t *testing.T) {
	a := NewAnalyzer("005930", 10)
	a.SetLastPrice(69000)

	a.UpdateTick(Tick{Price: 70000})
	a.UpdateTick(Tick{Price: 0})

	st := a.GetState()
	assert.Equal(t, "005930", st.Symbol)
	assert.Equal(t, int64(70000), st.LastPrice)
}

func TestAnalyzer_HistoryIsBounded(t *testing.T) {
	a := NewAnalyzer("005930", 3)
	for i := 0; i < 5; i++ {
		a.Confirm(barAt(i))
	}

	hist := a.History()
	assert.Equal(t, []Bar{barAt(2), barAt(3), barAt(4)}, hist)

	st := a.GetState()
	assert.Equal(t, 5, st.Bars)
	assert.Equal(t, barAt(4), st.LastBar)
}

func TestAnalyzer_Load(t *testing.T) {
	a := NewAnalyzer("005930", 100)
	a.Load([]Bar{barAt(0), barAt(1)})

	assert.Len(t, a.History(), 2)
	assert.Equal(t, 2, a.GetState().Bars)
}

func TestAnalyzer_ConfirmSameMinuteReplaces(t *testing.T) {
	a := NewAnalyzer("005930", 10)
	a.Load([]Bar{barAt(0), barAt(1)})

	updated := barAt(1)
	updated.Volume = 50
	a.Confirm(updated)

	assert.Equal(t, []Bar{barAt(0), updated}, a.History())
	assert.Equal(t, 2, a.GetState().Bars)
}
