// pkg/usecase/trade.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/portfolio"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/rebalance"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/service"
	"github.com/r-umemoto/rebalance-bot/pkg/infra/metrics"
)

var ErrNotEnoughBars = errors.New("初期の分足が不足しています")

// Predictor は確定足のウィンドウから目標ウェイトを返す規格です
type Predictor interface {
	Predict(ctx context.Context, window [][5]float64) float64
}

// BarRecorder は確定足1本ごとのログを残す規格です
type BarRecorder interface {
	RecordBar(bar market.Bar, st portfolio.State, targetW *float64) error
}

// PredictionJob は確定足をきっかけに発生する予測呼び出し1回分です。
// メインループの外（別ゴルーチン）で実行できます
type PredictionJob struct {
	Bar    market.Bar
	Window [][5]float64
}

// PredictionResult は予測結果です。メインループに戻してから状態に反映します
type PredictionResult struct {
	Bar     market.Bar
	TargetW float64
}

// Run は予測を実行します（予測側で再試行と前回値フォールバックを行う）
func (j PredictionJob) Run(ctx context.Context, p Predictor) PredictionResult {
	return PredictionResult{Bar: j.Bar, TargetW: p.Predict(ctx, j.Window)}
}

// TradeUseCase はTickから足を作り、予測とリバランスまでを一本の流れで処理します。
// すべてのメソッドはエンジンのメインループから直列に呼ばれる前提です
type TradeUseCase struct {
	symbol     string
	aggregator *market.BarAggregator
	window     *market.Window
	analyzer   *market.Analyzer
	ledger     *portfolio.Ledger
	rebalancer *rebalance.Engine
	executor   service.OrderExecutor
	cleaner    *service.PositionCleaner
	recorder   BarRecorder

	inflight *market.Bar     // 予測の結果待ちの足
	queue    []PredictionJob // 結果待ちの間に確定した足（古い順）
}

func NewTradeUseCase(
	symbol string,
	aggregator *market.BarAggregator,
	window *market.Window,
	analyzer *market.Analyzer,
	ledger *portfolio.Ledger,
	rebalancer *rebalance.Engine,
	executor service.OrderExecutor,
	recorder BarRecorder,
) *TradeUseCase {
	return &TradeUseCase{
		symbol:     symbol,
		aggregator: aggregator,
		window:     window,
		analyzer:   analyzer,
		ledger:     ledger,
		rebalancer: rebalancer,
		executor:   executor,
		cleaner:    service.NewPositionCleaner(rebalancer, ledger, analyzer, executor),
		recorder:   recorder,
	}
}

// Seed は過去の分足（古い順）でウィンドウと集計中の足を初期化します。
// ウィンドウには最新N本を入れ、最新の1本は集計中の足としても引き継ぎます。
// その足が確定するとウィンドウ末尾の同じ分を置き換えます
func (u *TradeUseCase) Seed(bars []market.Bar) error {
	n := u.window.Size()
	if len(bars) < n {
		return fmt.Errorf("%w: %d本 (必要 %d本)", ErrNotEnoughBars, len(bars), n)
	}

	for _, b := range bars[len(bars)-n:] {
		u.window.Push(b)
	}
	last := bars[len(bars)-1]
	u.analyzer.Load(bars)
	u.analyzer.SetLastPrice(last.Close)
	u.aggregator.Seed(last)

	log.Info().Int("bars", len(bars)).Int("window", u.window.Len()).Msg("✅ 初期分足ロード完了")
	return nil
}

// HandleTick はTickを集計します。足が確定してウィンドウが満杯なら予測ジョブを返します
func (u *TradeUseCase) HandleTick(ctx context.Context, tick market.Tick) *PredictionJob {
	if tick.Symbol != "" && tick.Symbol != u.symbol {
		return nil
	}

	confirmed, err := u.aggregator.Add(tick)
	if err != nil {
		metrics.TicksDropped.Inc()
		return nil
	}
	u.analyzer.UpdateTick(tick)
	if confirmed == nil {
		return nil
	}
	return u.finalize(*confirmed)
}

func (u *TradeUseCase) finalize(bar market.Bar) *PredictionJob {
	u.analyzer.Confirm(bar)
	u.window.Push(bar)
	metrics.BarsConfirmed.Inc()
	log.Info().Msgf("🕐 足確定 %s", bar)

	if !u.window.IsFull() {
		u.record(bar, nil)
		return nil
	}

	snapshot, err := u.window.Snapshot()
	if err != nil {
		u.record(bar, nil)
		return nil
	}
	job := PredictionJob{Bar: bar, Window: snapshot}
	if u.inflight != nil {
		// 前の予測がまだ戻っていない。順番待ちに積む
		u.queue = append(u.queue, job)
		metrics.PredictionQueue.Set(float64(len(u.queue)))
		log.Warn().Time("inflight", u.inflight.Time).Int("queued", len(u.queue)).Msg("⏳ 前回の予測が未完了のため、この足の予測は順番待ちにします")
		return nil
	}
	u.inflight = &job.Bar
	return &job
}

// NextJob は順番待ちの予測ジョブを古い順に1つ取り出します。
// 結果待ちの予測があるか、待ちがなければ nil
func (u *TradeUseCase) NextJob() *PredictionJob {
	if u.inflight != nil || len(u.queue) == 0 {
		return nil
	}
	job := u.queue[0]
	u.queue = u.queue[1:]
	metrics.PredictionQueue.Set(float64(len(u.queue)))
	u.inflight = &job.Bar
	return &job
}

// ApplyPrediction は予測結果をもとにリバランスを判断し、足のログを書きます
func (u *TradeUseCase) ApplyPrediction(ctx context.Context, res PredictionResult) rebalance.Decision {
	u.inflight = nil
	metrics.TargetW.Set(res.TargetW)

	decision := u.rebalancer.Decide(res.TargetW, u.ledger.State(), float64(res.Bar.Close))
	metrics.Decisions.WithLabelValues(string(decision.Reason)).Inc()
	log.Debug().Float64("target_w", res.TargetW).Msgf("判断: %s", decision)

	if decision.Intent != nil {
		// 拒否は executor 側でログ済み。判断の結果はそのまま返す
		_, _ = u.executor.Execute(ctx, *decision.Intent)
	}

	w := res.TargetW
	u.record(res.Bar, &w)
	return decision
}

// Process は HandleTick と予測・反映を同期的に続けて行います（再生用）
func (u *TradeUseCase) Process(ctx context.Context, tick market.Tick, p Predictor) *rebalance.Decision {
	job := u.HandleTick(ctx, tick)
	if job == nil {
		return nil
	}
	d := u.ApplyPrediction(ctx, job.Run(ctx, p))
	return &d
}

// HandleClock は1秒ごとに呼ばれ、引け間際なら保有を清算します
func (u *TradeUseCase) HandleClock(ctx context.Context) bool {
	return u.cleaner.Sweep(ctx)
}

// Pending は結果待ちまたは順番待ちの予測があるかを返します
func (u *TradeUseCase) Pending() bool { return u.inflight != nil || len(u.queue) > 0 }

// Portfolio は現在の模擬口座の状態を返します
func (u *TradeUseCase) Portfolio() portfolio.State { return u.ledger.State() }

func (u *TradeUseCase) record(bar market.Bar, targetW *float64) {
	st := u.ledger.State()
	metrics.Cash.Set(st.Cash)
	metrics.Position.Set(float64(st.Position))
	metrics.Equity.Set(st.Equity(float64(bar.Close)))

	if u.recorder == nil {
		return
	}
	if err := u.recorder.RecordBar(bar, st, targetW); err != nil {
		log.Error().Err(err).Msg("❌ 足ログの書き込みに失敗しました")
	}
}
