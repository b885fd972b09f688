package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/portfolio"
	"github.com/r-umemoto/rebalance-bot/pkg/infra/metrics"
)

// OrderSender は注文を外部に送る規格です（端末 or 模擬）
type OrderSender interface {
	SendOrder(ctx context.Context, symbol string, intent market.OrderIntent) (string, error)
}

// OrderDispatcher は売買指示を台帳に反映してから発注先へ送ります。
// 実口座への送信可否はここでだけ判断し、判断ロジック側は模擬でも本番でも同じです
type OrderDispatcher struct {
	symbol    string
	ledger    *portfolio.Ledger
	live      OrderSender
	paper     OrderSender
	allowLive bool

	wg sync.WaitGroup
}

func NewOrderDispatcher(symbol string, ledger *portfolio.Ledger, live, paper OrderSender, allowLive bool) *OrderDispatcher {
	return &OrderDispatcher{
		symbol:    symbol,
		ledger:    ledger,
		live:      live,
		paper:     paper,
		allowLive: allowLive,
	}
}

// Execute は service.OrderExecutor の実装です。
// 台帳が拒否した指示は発注しません。発注は投げっぱなしで、受付番号はログに残すだけです
func (d *OrderDispatcher) Execute(ctx context.Context, intent market.OrderIntent) (portfolio.Fill, error) {
	fill, err := d.ledger.Apply(intent)
	if err != nil {
		metrics.LedgerRejects.Inc()
		log.Warn().Err(err).Str("intent", intent.String()).Msg("⚠️ 注文反映を見送りました")
		return portfolio.Fill{}, err
	}

	st := d.ledger.State()
	metrics.Orders.WithLabelValues(string(fill.Side)).Inc()
	metrics.Cash.Set(st.Cash)
	metrics.Position.Set(float64(st.Position))

	icon := "🟢"
	if fill.Side == market.SIDE_SELL {
		icon = "🔴"
	}
	log.Info().Int64("pos", st.Position).Int64("cash", int64(st.Cash)).
		Msgf("%s %s %d @~%.0f", icon, fill.Side, fill.Qty, fill.RefPrice)

	sender := d.paper
	if d.allowLive && d.live != nil {
		sender = d.live
	}
	if sender == nil {
		return fill, nil
	}

	// 売りは台帳で保有数量に丸めた数量で送る
	sent := market.OrderIntent{Side: fill.Side, Qty: fill.Qty, RefPrice: fill.RefPrice}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		orderID, err := sender.SendOrder(ctx, d.symbol, sent)
		if err != nil {
			metrics.DispatchFailures.Inc()
			log.Error().Err(err).Str("intent", sent.String()).Msg("❌ 発注失敗")
			return
		}
		log.Info().Str("order_id", orderID).Str("intent", sent.String()).Msg("✅ 注文受付")
	}()

	return fill, nil
}

// Wait は送信中の注文がすべて戻るまで待ちます
func (d *OrderDispatcher) Wait() {
	d.wg.Wait()
}
