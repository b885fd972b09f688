package portfolio

import (
	"errors"
	"fmt"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
)

var (
	ErrInsufficientCash = errors.New("現金不足のため約定を反映しません")
	ErrNothingToSell    = errors.New("売却できる保有がありません")
	ErrInvalidOrder     = errors.New("数量または価格が不正です")
)

// State は模擬口座の現金・保有数量・平均取得単価です
type State struct {
	Cash     float64
	Position int64
	AvgCost  float64 // Position > 0 の間だけ意味を持つ
}

// Equity は参照価格で評価した総資産を返します
func (s State) Equity(price float64) float64 {
	return s.Cash + float64(s.Position)*price
}

// Fill は模擬約定の結果です
type Fill struct {
	Side      market.Side
	Qty       int64
	RefPrice  float64
	FillPrice float64 // 手数料・スリッページ込みの単価
	Amount    float64 // 現金の増減額（絶対値）
}

func (f Fill) String() string {
	return fmt.Sprintf("%s %d @~%.0f (fill %.2f, amount %.0f)", f.Side, f.Qty, f.RefPrice, f.FillPrice, f.Amount)
}

// Ledger は模擬口座の台帳です。状態を変えるのは Apply だけで、
// 呼び出しはエンジンのメインループで直列化されている前提です
type Ledger struct {
	feeRate      float64
	slippageRate float64
	state        State
}

func NewLedger(initialCash, feeRate, slippageRate float64) *Ledger {
	return &Ledger{
		feeRate:      feeRate,
		slippageRate: slippageRate,
		state:        State{Cash: initialCash},
	}
}

func (l *Ledger) State() State { return l.state }

// Apply は売買指示を固定の手数料＋スリッページで約定したとみなして反映します。
// 拒否した場合は状態を一切変えずにエラーを返します（致命的ではない）
func (l *Ledger) Apply(intent market.OrderIntent) (Fill, error) {
	if intent.Qty <= 0 || intent.RefPrice <= 0 {
		return Fill{}, ErrInvalidOrder
	}
	switch intent.Side {
	case market.SIDE_BUY:
		return l.buy(intent.Qty, intent.RefPrice)
	case market.SIDE_SELL:
		return l.sell(intent.Qty, intent.RefPrice)
	}
	return Fill{}, fmt.Errorf("%w: side=%q", ErrInvalidOrder, intent.Side)
}

func (l *Ledger) buy(qty int64, price float64) (Fill, error) {
	fillPrice := price * (1 + l.feeRate + l.slippageRate)
	cost := float64(qty) * fillPrice
	if cost > l.state.Cash {
		return Fill{}, fmt.Errorf("%w (必要 %.0f / 残高 %.0f)", ErrInsufficientCash, cost, l.state.Cash)
	}

	// 平均単価は手数料を含まない参照価格で加重平均する（現金は約定単価で減らす）
	pos := float64(l.state.Position)
	l.state.AvgCost = (l.state.AvgCost*pos + price*float64(qty)) / (pos + float64(qty))
	l.state.Position += qty
	l.state.Cash -= cost

	return Fill{
		Side:      market.SIDE_BUY,
		Qty:       qty,
		RefPrice:  price,
		FillPrice: fillPrice,
		Amount:    cost,
	}, nil
}

func (l *Ledger) sell(qty int64, price float64) (Fill, error) {
	if l.state.Position <= 0 {
		return Fill{}, ErrNothingToSell
	}
	if qty > l.state.Position {
		qty = l.state.Position
	}

	fillPrice := price * (1 - l.feeRate - l.slippageRate)
	revenue := float64(qty) * fillPrice
	l.state.Position -= qty
	l.state.Cash += revenue
	if l.state.Position == 0 {
		l.state.AvgCost = 0
	}

	return Fill{
		Side:      market.SIDE_SELL,
		Qty:       qty,
		RefPrice:  price,
		FillPrice: fillPrice,
		Amount:    revenue,
	}, nil
}
