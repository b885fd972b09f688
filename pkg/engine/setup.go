// pkg/engine/setup.go
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/r-umemoto/rebalance-bot/pkg/config"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/portfolio"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/rebalance"
	"github.com/r-umemoto/rebalance-bot/pkg/infra/journal"
	"github.com/r-umemoto/rebalance-bot/pkg/infra/kabu"
	"github.com/r-umemoto/rebalance-bot/pkg/infra/oracle"
	"github.com/r-umemoto/rebalance-bot/pkg/infra/paper"
	"github.com/r-umemoto/rebalance-bot/pkg/usecase"
)

// historyLimit は確定足の履歴をメモリに残す上限です（1日分＋α）
const historyLimit = 2000

// BuildEngine は、システム全体を俯瞰する「目次」です
func BuildEngine(ctx context.Context, cfg *config.AppConfig) (*Engine, error) {
	// 1. インフラ層の構築（泥臭い設定はすべてここへ）
	gateway, err := buildInfrastructure(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rec, err := journal.Open(cfg.LogPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", rec.Path()).Msg("📝 足ログの書き込み先")

	predictor := oracle.NewClient(cfg.Oracle.URL, cfg.Oracle.Timeouts...)

	// 2. ドメイン層とユースケースの組み立て
	tradeUC, dispatcher, err := buildTradeUseCase(cfg, gateway, rec)
	if err != nil {
		rec.Close()
		return nil, err
	}

	seedBars := cfg.Trading.SeedBars
	if floor := cfg.Trading.WindowSize + 5; seedBars < floor {
		seedBars = floor
	}

	// 3. エンジンの完成
	e := NewEngine(gateway, tradeUC, predictor, cfg.Trading.Symbol, seedBars)
	e.OnStop(func() error {
		dispatcher.Wait()
		return nil
	})
	e.OnStop(rec.Close)
	return e, nil
}

// ---------------------------------------------------------
// ▼ ここから下は「下請け工場（プライベート関数）」に押し込む
// ---------------------------------------------------------

func buildInfrastructure(ctx context.Context, cfg *config.AppConfig) (*kabu.MarketGateway, error) {
	if cfg.BrokerType != "kabu" {
		return nil, fmt.Errorf("未対応のブローカーです: %s", cfg.BrokerType)
	}
	loc, err := cfg.Trading.Location()
	if err != nil {
		return nil, err
	}

	client := kabu.NewKabuClient(cfg.Kabu)
	if err := client.GetToken(ctx); err != nil {
		return nil, fmt.Errorf("トークン取得エラー: %w", err)
	}
	log.Info().Msg("🔐 APIトークン取得完了")

	wsURL := strings.Replace(cfg.Kabu.APIURL, "http://", "ws://", 1) + "/websocket"
	gateway := kabu.NewMarketGateway(client, kabu.NewWSClient(wsURL), cfg.Kabu, loc)

	if err := gateway.Subscribe(ctx, cfg.Trading.Symbol); err != nil {
		return nil, err
	}
	log.Info().Str("symbol", cfg.Trading.Symbol).Msg("📡 リアルタイム登録完了")

	return gateway, nil
}

func buildTradeUseCase(cfg *config.AppConfig, live usecase.OrderSender, rec usecase.BarRecorder) (*usecase.TradeUseCase, *usecase.OrderDispatcher, error) {
	t := cfg.Trading
	loc, err := t.Location()
	if err != nil {
		return nil, nil, err
	}
	cutoff, err := rebalance.ParseCutoff(t.ForceLiquidateTime)
	if err != nil {
		return nil, nil, err
	}

	ledger := portfolio.NewLedger(t.InitialCash, t.FeeRate, t.SlippageRate)
	session := rebalance.NewSessionClock(cutoff, loc, nil)
	rebalancer := rebalance.NewEngine(t.RebalanceParams(), session)

	if !t.AllowLiveTrading {
		log.Warn().Msg("🧪 実口座保護: ALLOW_LIVE_TRADING=false（模擬売買モード）")
	}
	dispatcher := usecase.NewOrderDispatcher(t.Symbol, ledger, live, paper.NewGateway(), t.AllowLiveTrading)

	tradeUC := usecase.NewTradeUseCase(
		t.Symbol,
		market.NewBarAggregator(loc),
		market.NewWindow(t.WindowSize),
		market.NewAnalyzer(t.Symbol, historyLimit),
		ledger,
		rebalancer,
		dispatcher,
		rec,
	)
	return tradeUC, dispatcher, nil
}
