// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/r-umemoto/rebalance-bot/pkg/config"
	"github.com/r-umemoto/rebalance-bot/pkg/engine"
	"github.com/r-umemoto/rebalance-bot/pkg/infra/metrics"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	log.Info().Msg("システム起動: 初期化プロセスを開始します。")

	// 1. 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗しました")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	// 2. 全体を安全に停止するためのコンテキスト管理（Ctrl+C / SIGTERM）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	// 3. エンジンの組み立て（ログインできなければここで終了）
	eng, err := engine.BuildEngine(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ エンジンの構築に失敗しました")
	}

	// 4. 実行（初期分足が足りなければここで終了）
	if err := eng.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("❌ 異常終了")
	}
	log.Info().Msg("✅ システムを安全にシャットダウンしました。お疲れ様でした。")
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("📈 /metrics を公開します")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metricsサーバーエラー")
	}
}
