// pkg/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
	"github.com/r-umemoto/rebalance-bot/pkg/usecase"
)

// Engine はシステム全体のライフサイクル（初期化、実行、停止）を管理する司令部です。
// 売買状態を触る処理はすべて Run の select ループ1本に集約し、直列に実行します
type Engine struct {
	gateway   market.MarketGateway
	tradeUC   *usecase.TradeUseCase
	predictor usecase.Predictor
	symbol    string
	seedBars  int

	clockInterval time.Duration
	onStop        []func() error
}

func NewEngine(gateway market.MarketGateway, tradeUC *usecase.TradeUseCase, predictor usecase.Predictor, symbol string, seedBars int) *Engine {
	return &Engine{
		gateway:       gateway,
		tradeUC:       tradeUC,
		predictor:     predictor,
		symbol:        symbol,
		seedBars:      seedBars,
		clockInterval: time.Second,
	}
}

// OnStop はメインループ終了後に実行する後片付けを登録します
func (e *Engine) OnStop(fn func() error) {
	e.onStop = append(e.onStop, fn)
}

// Seed は過去の分足を取得してウィンドウを埋めます。足りなければ起動を中止します
func (e *Engine) Seed(ctx context.Context) error {
	log.Info().Str("symbol", e.symbol).Int("count", e.seedBars).Msg("⏳ 初期分足をロード中...")
	bars, err := e.gateway.FetchBars(ctx, e.symbol, e.seedBars)
	if err != nil {
		return fmt.Errorf("初期分足の取得に失敗: %w", err)
	}
	return e.tradeUC.Seed(bars)
}

// Run はシステムの初期化を行い、メインループを開始します
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Seed(ctx); err != nil {
		return err
	}

	tickCh, err := e.gateway.Start(ctx)
	if err != nil {
		return err
	}

	// 引け間際の強制清算用のタイマー（1秒周期）
	ticker := time.NewTicker(e.clockInterval)
	defer ticker.Stop()

	// 予測は別ゴルーチンで1件ずつ走らせ、結果だけをこのループに戻す
	results := make(chan usecase.PredictionResult, 1)
	predictCtx, cancelPredict := context.WithCancel(ctx)
	defer cancelPredict()
	startPredict := func(job usecase.PredictionJob) {
		go func() {
			results <- job.Run(predictCtx, e.predictor)
		}()
	}

	log.Info().Msg("🚀 市場の監視を開始します...")

	// メインループ（すべてを1つのselectで統括する）
Loop:
	for {
		select {
		case <-ctx.Done(): // OSの終了シグナル (Ctrl+C)
			log.Warn().Msg("🚨 システム終了シグナルを検知！監視ループを停止します...")
			break Loop

		case <-ticker.C: // 時間の監視
			e.tradeUC.HandleClock(ctx)

		case tick, ok := <-tickCh: // 約定の受信
			if !ok {
				log.Warn().Msg("📴 Tick配信が終了しました。時計による清算だけを続けます")
				tickCh = nil
				continue
			}
			if job := e.tradeUC.HandleTick(ctx, tick); job != nil {
				startPredict(*job)
			}

		case res := <-results: // 予測結果の反映
			e.tradeUC.ApplyPrediction(ctx, res)
			if job := e.tradeUC.NextJob(); job != nil {
				startPredict(*job)
			}
		}
	}

	// ループを抜けた後の後片付け（送信中の注文待ち、ログのクローズなど）
	var firstErr error
	for _, fn := range e.onStop {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
