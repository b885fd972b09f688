package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/portfolio"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/rebalance"
)

// OrderExecutor は売買指示を台帳に反映し、端末へ送る役割の規格です
type OrderExecutor interface {
	Execute(ctx context.Context, intent market.OrderIntent) (portfolio.Fill, error)
}

// PositionCleaner は引け間際に保有を全量売却してノーポジションにするサービスです。
// Tickが途絶えていても、1秒ごとの時計から呼ばれて清算を保証します
type PositionCleaner struct {
	rebalancer *rebalance.Engine
	ledger     *portfolio.Ledger
	analyzer   *market.Analyzer
	executor   OrderExecutor
}

func NewPositionCleaner(rebalancer *rebalance.Engine, ledger *portfolio.Ledger, analyzer *market.Analyzer, executor OrderExecutor) *PositionCleaner {
	return &PositionCleaner{
		rebalancer: rebalancer,
		ledger:     ledger,
		analyzer:   analyzer,
		executor:   executor,
	}
}

// Sweep は強制清算時刻を過ぎていて保有があれば、最終価格で全量を売ります。
// 売り指示を出した場合は true を返します
func (c *PositionCleaner) Sweep(ctx context.Context) bool {
	if !c.rebalancer.SessionOver() {
		return false
	}
	st := c.ledger.State()
	if st.Position <= 0 {
		return false
	}

	lastPrice := float64(c.analyzer.GetState().LastPrice)
	decision := c.rebalancer.Liquidation(st, lastPrice)
	if decision.Intent == nil {
		log.Warn().Str("reason", string(decision.Reason)).Msg("🚨 強制清算できません（最終価格なし）")
		return false
	}

	log.Warn().Int64("qty", decision.Intent.Qty).Float64("price", lastPrice).
		Msg("⏰【強制清算】引け間際に到達。保有を全量売却します！")
	if _, err := c.executor.Execute(ctx, *decision.Intent); err != nil {
		log.Error().Err(err).Msg("❌ 強制清算の反映に失敗しました")
		return false
	}
	return true
}
