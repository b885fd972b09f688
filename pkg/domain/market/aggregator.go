package market

import (
	"time"
)

// BarAggregator はTickを受け取り、1分ごとに1本の足を確定させる状態機械です。
// active が nil の間は「足なし」、それ以外は「集計中」です。
//
// 分の境界は受信時刻（壁時計）から求めます。過去データを再生する場合は
// Tick.Time に取引所時刻を入れてから渡してください。
type BarAggregator struct {
	loc    *time.Location
	active *Bar
}

func NewBarAggregator(loc *time.Location) *BarAggregator {
	if loc == nil {
		loc = time.Local
	}
	return &BarAggregator{loc: loc}
}

// minuteOf は時刻を分単位に切り捨てます（タイムゾーンのオフセットを考慮）
func (a *BarAggregator) minuteOf(t time.Time) time.Time {
	t = t.In(a.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, a.loc)
}

// Seed は過去データの最新足を集計中の足として引き継ぎます
func (a *BarAggregator) Seed(bar Bar) {
	b := bar
	b.Time = a.minuteOf(bar.Time)
	a.active = &b
}

// Add はTickを集計します。分が変わった場合は直前の足を確定させて返します。
// 価格が0以下のTickは状態を変えずに ErrInvalidTick を返します
func (a *BarAggregator) Add(tick Tick) (*Bar, error) {
	price := tick.Price
	if price <= 0 {
		return nil, ErrInvalidTick
	}
	vol := abs(tick.Volume)
	minute := a.minuteOf(tick.Time)

	if a.active == nil {
		a.start(minute, price, vol)
		return nil, nil
	}

	if minute.Equal(a.active.Time) {
		if price > a.active.High {
			a.active.High = price
		}
		if price < a.active.Low {
			a.active.Low = price
		}
		a.active.Close = price
		a.active.Volume += vol
		return nil, nil
	}

	// 分が変わった → 直前の足を確定
	confirmed := *a.active
	a.start(minute, price, vol)
	return &confirmed, nil
}

// Active は集計中の足のコピーを返します
func (a *BarAggregator) Active() (Bar, bool) {
	if a.active == nil {
		return Bar{}, false
	}
	return *a.active, true
}

func (a *BarAggregator) start(minute time.Time, price, vol int64) {
	a.active = &Bar{
		Time:   minute,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: vol,
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
