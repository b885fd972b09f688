package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_bars_confirmed_total", Help: "確定した1分足の本数",
	})
	TicksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_ticks_dropped_total", Help: "価格が0以下で捨てたTick",
	})
	PredictAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_predict_attempts_total", Help: "予測サーバー呼び出し回数（結果別）",
	}, []string{"result"})
	PredictFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_predict_fallbacks_total", Help: "2回とも失敗して前回値を使った回数",
	})
	Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_rebalance_decisions_total", Help: "リバランス判断（理由別）",
	}, []string{"reason"})
	Orders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_orders_total", Help: "模擬約定した注文（売買別）",
	}, []string{"side"})
	LedgerRejects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_ledger_rejects_total", Help: "台帳が拒否した約定",
	})
	DispatchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_dispatch_failures_total", Help: "端末への発注に失敗した回数",
	})

	Cash     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_cash", Help: "模擬口座の現金"})
	Position = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_position", Help: "保有数量"})
	Equity   = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_equity", Help: "総資産（直近の終値で評価）"})
	TargetW  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_target_weight", Help: "直近の目標ウェイト"})

	PredictionQueue = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_prediction_queue", Help: "順番待ちの予測ジョブ数"})
)

func init() {
	prometheus.MustRegister(
		BarsConfirmed, TicksDropped, PredictAttempts, PredictFallbacks,
		Decisions, Orders, LedgerRejects, DispatchFailures,
		Cash, Position, Equity, TargetW, PredictionQueue,
	)
}

// Handler は /metrics 用のハンドラです
func Handler() http.Handler {
	return promhttp.Handler()
}
