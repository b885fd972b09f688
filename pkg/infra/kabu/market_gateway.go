// pkg/infra/kabu/market_gateway.go
package kabu

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
)

const chartTimeLayout = "20060102150405"

// MarketGateway は証券端末の REST と WebSocket をまとめて market.MarketGateway に変換します
type MarketGateway struct {
	client   *KabuClient
	wsClient *WSClient
	exchange int
	limiter  *rate.Limiter // 端末の発注回数制限を超えないための絞り
	loc      *time.Location

	now            func() time.Time
	reconnectDelay time.Duration
}

func NewMarketGateway(client *KabuClient, wsClient *WSClient, cfg Config, loc *time.Location) *MarketGateway {
	perSec := cfg.OrdersPerSecond
	if perSec <= 0 {
		perSec = 5
	}
	if loc == nil {
		loc = time.Local
	}
	exchange := cfg.Exchange
	if exchange == 0 {
		exchange = 1
	}
	return &MarketGateway{
		client:         client,
		wsClient:       wsClient,
		exchange:       exchange,
		limiter:        rate.NewLimiter(rate.Limit(perSec), 1),
		loc:            loc,
		now:            time.Now,
		reconnectDelay: 3 * time.Second,
	}
}

// Start は market.MarketGateway の実装です
func (m *MarketGateway) Start(ctx context.Context) (<-chan market.Tick, error) {
	tickCh := make(chan market.Tick, 100)

	// 株価のWebSocketを裏側で起動
	go m.startWebSocketLoop(ctx, tickCh)

	return tickCh, nil
}

// Subscribe はPUSH配信の対象に銘柄を登録します
func (m *MarketGateway) Subscribe(ctx context.Context, symbol string) error {
	_, err := m.client.RegisterSymbol(ctx, RegisterSymbolRequest{
		Symbols: []RegisterSymbolsItem{{Symbol: symbol, Exchange: m.exchange}},
	})
	if err != nil {
		return fmt.Errorf("銘柄登録失敗 (%s): %w", symbol, err)
	}
	return nil
}

// FetchBars は market.MarketGateway の実装です。古い順に並べ替えて返します
func (m *MarketGateway) FetchBars(ctx context.Context, symbol string, count int) ([]market.Bar, error) {
	raw, err := m.client.GetChart(ctx, symbol, count)
	if err != nil {
		return nil, err
	}
	if len(raw) > count {
		raw = raw[:count]
	}

	bars := make([]market.Bar, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		r := raw[i]
		t, err := time.ParseInLocation(chartTimeLayout, r.Time, m.loc)
		if err != nil {
			log.Debug().Str("time", r.Time).Msg("時刻を解釈できない足をスキップします")
			continue
		}
		bars = append(bars, market.Bar{
			Time:   t,
			Open:   absTick(r.Open),
			High:   absTick(r.High),
			Low:    absTick(r.Low),
			Close:  absTick(r.Close),
			Volume: absTick(r.Volume),
		})
	}
	return bars, nil
}

// SendOrder は market.MarketGateway の実装です（現物・成行）
func (m *MarketGateway) SendOrder(ctx context.Context, symbol string, intent market.OrderIntent) (string, error) {
	side := SIDE_SELL
	delivType := int32(0)
	if intent.Side == market.SIDE_BUY {
		side = SIDE_BUY
		delivType = 2
	}

	req := OrderRequest{
		Symbol:         symbol,
		Exchange:       m.exchange,
		SecurityType:   1,
		Side:           string(side),
		CashMargin:     1,
		DelivType:      delivType,
		AccountType:    4,
		Qty:            intent.Qty,
		Price:          0,
		ExpireDay:      0,
		FrontOrderType: 10,
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("発注待機中に中断されました: %w", err)
	}

	resp, err := m.client.SendOrder(ctx, req)
	if err != nil {
		return "", fmt.Errorf("端末API発注失敗: %w", err)
	}
	return resp.OrderId, nil
}

func (m *MarketGateway) startWebSocketLoop(ctx context.Context, tickCh chan<- market.Tick) {
	defer close(tickCh)

	rawCh := make(chan PushMessage, 100)
	go func() {
		// 切断されたら少し待って再接続する
		for {
			err := m.wsClient.Listen(ctx, rawCh)
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Dur("retry_in", m.reconnectDelay).Msg("🔌 WebSocketが切断されました。再接続します")
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.reconnectDelay):
			}
		}
	}()

	// 🔄 変換層（アダプター処理）
	volumes := make(map[string]*VolumeTracker)
	for {
		select {
		case <-ctx.Done():
			// システム終了時は安全にゴルーチンを抜ける
			return
		case msg := <-rawCh:
			tick, ok := m.toTick(msg, volumes)
			if !ok {
				continue
			}
			select {
			case tickCh <- tick:
			case <-ctx.Done():
				return
			}
		}
	}
}

// toTick は端末専用データをシステム共通データに翻訳します。受信時刻を壁時計で付けます
func (m *MarketGateway) toTick(msg PushMessage, volumes map[string]*VolumeTracker) (market.Tick, bool) {
	if msg.Symbol == "" {
		return market.Tick{}, false
	}
	vt, ok := volumes[msg.Symbol]
	if !ok {
		vt = &VolumeTracker{}
		volumes[msg.Symbol] = vt
	}
	return market.Tick{
		Symbol: msg.Symbol,
		Price:  absTick(msg.CurrentPrice),
		Volume: vt.Next(msg.TradingVolume),
		Time:   m.now(),
	}, true
}

// absTick は符号付きで届く価格を正の整数（呼値単位）にそろえます
func absTick(v float64) int64 {
	return int64(math.Abs(math.Round(v)))
}
