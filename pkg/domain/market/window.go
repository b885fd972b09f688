package market

// Window は予測入力となる直近N本の確定足を保持する固定長バッファです。
// 容量を超えて追加すると最も古い足を捨てます（FIFO）
type Window struct {
	size int
	bars []Bar
}

func NewWindow(size int) *Window {
	return &Window{
		size: size,
		bars: make([]Bar, 0, size),
	}
}

// Push は足を末尾に追加します。
// 末尾と同じ分の足は追加せず置き換えます（起動時に引き継いだ集計中の足が確定した場合）
func (w *Window) Push(bar Bar) {
	if w.size <= 0 {
		return
	}
	if n := len(w.bars); n > 0 && w.bars[n-1].Time.Equal(bar.Time) {
		w.bars[n-1] = bar
		return
	}
	if len(w.bars) == w.size {
		copy(w.bars, w.bars[1:])
		w.bars = w.bars[:w.size-1]
	}
	w.bars = append(w.bars, bar)
}

func (w *Window) IsFull() bool {
	return w.size > 0 && len(w.bars) == w.size
}

func (w *Window) Len() int  { return len(w.bars) }
func (w *Window) Size() int { return w.size }

// Snapshot は古い順に並んだ N×5 の行列を返します。満杯でなければエラー
func (w *Window) Snapshot() ([][5]float64, error) {
	if !w.IsFull() {
		return nil, ErrWindowNotFull
	}
	rows := make([][5]float64, len(w.bars))
	for i, b := range w.bars {
		rows[i] = b.Tuple()
	}
	return rows, nil
}

// Bars は保持している足のコピーを返します
func (w *Window) Bars() []Bar {
	out := make([]Bar, len(w.bars))
	copy(out, w.bars)
	return out
}
