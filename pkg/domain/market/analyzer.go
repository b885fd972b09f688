package market

import "sync"

// MarketState は、銘柄の「今の市場環境」をまとめたものです
type MarketState struct {
	Symbol    string
	LastPrice int64 // 最後に受信した有効な約定価格
	Bars      int   // これまでに確定した足の本数
	LastBar   Bar
}

// Analyzer は最終価格と確定足の履歴を保持します。
// Session Clock など別のゴルーチンから参照されるためロックを持ちます
type Analyzer struct {
	symbol     string
	maxHistory int

	mu        sync.RWMutex
	lastPrice int64
	history   []Bar
	total     int
}

func NewAnalyzer(symbol string, maxHistory int) *Analyzer {
	if maxHistory <= 0 {
		maxHistory = 1
	}
	return &Analyzer{
		symbol:     symbol,
		maxHistory: maxHistory,
	}
}

// UpdateTick は有効なTickの価格を最終価格として記録します
func (a *Analyzer) UpdateTick(tick Tick) {
	if tick.Price <= 0 {
		return
	}
	a.mu.Lock()
	a.lastPrice = tick.Price
	a.mu.Unlock()
}

// SetLastPrice は起動時の過去データから最終価格を設定します
func (a *Analyzer) SetLastPrice(price int64) {
	a.mu.Lock()
	a.lastPrice = price
	a.mu.Unlock()
}

// Confirm は確定足を履歴に追加します（上限を超えた古い足は捨てる）。
// 直前と同じ分の足は置き換えます
func (a *Analyzer) Confirm(bar Bar) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.history); n > 0 && a.history[n-1].Time.Equal(bar.Time) {
		a.history[n-1] = bar
		return
	}
	a.history = append(a.history, bar)
	if over := len(a.history) - a.maxHistory; over > 0 {
		a.history = append(a.history[:0], a.history[over:]...)
	}
	a.total++
}

// Load は過去データを履歴として丸ごと取り込みます
func (a *Analyzer) Load(bars []Bar) {
	for _, b := range bars {
		a.Confirm(b)
	}
}

// History は保持中の確定足を古い順に返します
func (a *Analyzer) History() []Bar {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Bar, len(a.history))
	copy(out, a.history)
	return out
}

// GetState は最新の市場状態を返します
func (a *Analyzer) GetState() MarketState {
	a.mu.RLock()
	defer a.mu.RUnlock()

	state := MarketState{
		Symbol:    a.symbol,
		LastPrice: a.lastPrice,
		Bars:      a.total,
	}
	if n := len(a.history); n > 0 {
		state.LastBar = a.history[n-1]
	}
	return state
}
