package paper

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
)

// Gateway は実口座に注文を出さない発注先です。
// 模擬売買モード（ALLOW_LIVE_TRADING=false）のときに端末の代わりに使います
type Gateway struct{}

func NewGateway() *Gateway { return &Gateway{} }

// SendOrder は注文を記録するだけで、受付番号として "paper-" で始まるIDを返します
func (g *Gateway) SendOrder(ctx context.Context, symbol string, intent market.OrderIntent) (string, error) {
	id := "paper-" + uuid.NewString()
	log.Info().Str("symbol", symbol).Str("order_id", id).Msgf("🧪 模擬発注 %s（実口座には送信しません）", intent)
	return id, nil
}
