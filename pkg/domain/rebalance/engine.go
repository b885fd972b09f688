package rebalance

import (
	"fmt"
	"math"
	"time"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/portfolio"
)

// Params はリスク・コスト関連の設定値です（起動時に固定）
type Params struct {
	MaxPositionValue  float64
	Cooldown          time.Duration
	MinTradeQty       int64
	MinRebalanceRatio float64
	TradeBlockQty     int64
	MinOrderValue     float64
	AggressionGain    float64
}

// Reason は判断の結果（発注 or 見送りの理由）です
type Reason string

const (
	REASON_REBALANCE   Reason = "rebalance"
	REASON_LIQUIDATION Reason = "liquidation"
	REASON_FLAT        Reason = "flat"         // 引け間際だが保有なし
	REASON_COOLDOWN    Reason = "cooldown"     // 前回の発注から間がない
	REASON_BAD_EQUITY  Reason = "bad_equity"   // 価格 or 総資産が0以下
	REASON_SMALL_DRIFT Reason = "small_drift"  // 目標との乖離が小さい
	REASON_NO_DELTA    Reason = "no_delta"     // 目標数量と一致
	REASON_BELOW_BLOCK Reason = "below_block"  // ブロックに満たない
)

// Decision はリバランス判断1回分の結果です。Intent が nil なら何もしません
type Decision struct {
	Intent        *market.OrderIntent
	Reason        Reason
	CurrentWeight float64
	AdjustedW     float64
	TargetQty     int64
	BlockQty      int64
}

func (d Decision) String() string {
	if d.Intent == nil {
		return fmt.Sprintf("見送り(%s) curr_w=%.4f", d.Reason, d.CurrentWeight)
	}
	return fmt.Sprintf("%s: %s curr_w=%.4f adj_w=%.4f target=%d block=%d",
		d.Reason, d.Intent, d.CurrentWeight, d.AdjustedW, d.TargetQty, d.BlockQty)
}

// Engine は目標ウェイトと口座状態から、最大1件の売買指示を作ります。
// 各フィルタを順番に適用し、どこかで止まった場合は状態を変えません
type Engine struct {
	params  Params
	session *SessionClock

	lastOrder time.Time // ThrottleState: 発注指示を出した時刻
}

func NewEngine(params Params, session *SessionClock) *Engine {
	return &Engine{
		params:  params,
		session: session,
	}
}

// LastOrder は最後に発注指示を出した時刻を返します（未発注ならゼロ値）
func (e *Engine) LastOrder() time.Time { return e.lastOrder }

// SessionOver は現在が強制清算時刻以降かを返します
func (e *Engine) SessionOver() bool {
	return e.session.Over(e.session.Now())
}

// Decide はフィルタチェーンを順に適用して判断します
func (e *Engine) Decide(targetW float64, st portfolio.State, price float64) Decision {
	now := e.session.Now()

	// 1) 引け間際は何より優先して全量売却
	if e.session.Over(now) {
		return e.Liquidation(st, price)
	}

	// 2) クールダウン
	if !e.lastOrder.IsZero() && now.Sub(e.lastOrder) < e.params.Cooldown {
		return Decision{Reason: REASON_COOLDOWN}
	}

	// 3) 総資産と現在ウェイト
	if price <= 0 {
		return Decision{Reason: REASON_BAD_EQUITY}
	}
	equity := st.Equity(price)
	if equity <= 0 {
		return Decision{Reason: REASON_BAD_EQUITY}
	}
	currW := float64(st.Position) * price / equity
	d := Decision{CurrentWeight: currW}

	// 4) 小さな乖離は無視して細かい売買を防ぐ
	drift := targetW - currW
	if math.Abs(drift) < e.params.MinRebalanceRatio {
		d.Reason = REASON_SMALL_DRIFT
		return d
	}

	// 5) 目標へ行き過ぎ気味に寄せる
	d.AdjustedW = clamp01(currW + e.params.AggressionGain*drift)

	// 6) 目標数量と最大保有価値の上限
	targetQty := int64(math.Floor(d.AdjustedW * equity / price))
	if maxQty := int64(math.Floor(e.params.MaxPositionValue / price)); targetQty > maxQty {
		targetQty = maxQty
	}
	d.TargetQty = targetQty
	delta := targetQty - st.Position
	if delta == 0 {
		d.Reason = REASON_NO_DELTA
		return d
	}

	// 7) ブロック単位にまとめる。溜まるまでは待つ
	block := e.blockQty(price)
	d.BlockQty = block
	absDelta := delta
	if absDelta < 0 {
		absDelta = -absDelta
	}
	if absDelta < block {
		d.Reason = REASON_BELOW_BLOCK
		return d
	}
	blocks := absDelta / block
	if blocks < 1 {
		blocks = 1
	}
	qty := blocks * block
	if qty > absDelta {
		qty = absDelta
	}

	// 8) 発注。クールダウンは約定ではなく発注指示の時刻で数える
	side := market.SIDE_BUY
	if delta < 0 {
		side = market.SIDE_SELL
	}
	d.Intent = &market.OrderIntent{Side: side, Qty: qty, RefPrice: price}
	d.Reason = REASON_REBALANCE
	e.lastOrder = now
	return d
}

// Liquidation は保有があれば全量の売り指示を返します。他のフィルタは通しません
func (e *Engine) Liquidation(st portfolio.State, price float64) Decision {
	if st.Position <= 0 {
		return Decision{Reason: REASON_FLAT}
	}
	if price <= 0 {
		return Decision{Reason: REASON_BAD_EQUITY}
	}
	return Decision{
		Intent: &market.OrderIntent{Side: market.SIDE_SELL, Qty: st.Position, RefPrice: price},
		Reason: REASON_LIQUIDATION,
	}
}

func (e *Engine) blockQty(price float64) int64 {
	var byValue int64
	if e.params.MinOrderValue > 0 {
		byValue = int64(math.Floor(e.params.MinOrderValue / price))
	}
	block := e.params.MinTradeQty
	if e.params.TradeBlockQty > block {
		block = e.params.TradeBlockQty
	}
	if byValue > block {
		block = byValue
	}
	if block < 1 {
		block = 1
	}
	return block
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
