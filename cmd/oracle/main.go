// cmd/oracle/main.go
package main

import (
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/r-umemoto/rebalance-bot/pkg/infra/oracle"
)

// 学習済みモデルの代わりに決定的な方策で目標ウェイトを返すモック予測サーバー
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	gin.SetMode(gin.ReleaseMode)

	window := 12
	if v, err := strconv.Atoi(os.Getenv("WINDOW_SIZE")); err == nil && v > 0 {
		window = v
	}
	addr := "127.0.0.1:8000"
	if a := os.Getenv("ORACLE_ADDR"); a != "" {
		addr = a
	}

	r := oracle.NewServer(window, oracle.MomentumPolicy, nil)
	log.Info().Str("addr", addr).Int("window", window).Msg("🔮 モック予測サーバー起動")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("サーバー起動エラー")
	}
}
