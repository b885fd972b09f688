// cmd/mock/main.go
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// 模擬端末の状態（全ハンドラーで共有）
var (
	mu            sync.Mutex
	symbol        = "005930"
	tradingVolume = 0.0
	tick          = 0
	orderSeq      = 0
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	if s := os.Getenv("SYMBOL"); s != "" {
		symbol = s
	}
	addr := ":18080"
	if a := os.Getenv("MOCK_ADDR"); a != "" {
		addr = a
	}

	// エンドポイントのルーティング
	http.HandleFunc("/kabusapi/websocket", handleWebSocket)
	http.HandleFunc("/kabusapi/token", handleToken)
	http.HandleFunc("/kabusapi/chart/", handleChart)
	http.HandleFunc("/kabusapi/register", handleRegister)
	http.HandleFunc("/kabusapi/sendorder", handleSendOrder)

	log.Info().Str("addr", addr).Str("symbol", symbol).Msg("[Mock] サーバー起動: モック端末が待機中...")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("サーバー起動エラー")
	}
}

// priceAt はテスト用の価格の波です。70,000円を中心にゆっくり上下します
func priceAt(i int) float64 {
	return 70000 + math.Round(1500*math.Sin(float64(i)/30))
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 1. WebSocket配信用ハンドラー
func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("アップグレードエラー")
		return
	}
	defer conn.Close()

	log.Info().Msg("[Mock] 🎯 ボットからのWebSocket接続を受け付けました！")

	for {
		mu.Lock()
		tick++
		price := priceAt(tick)
		tradingVolume += float64(10 + tick%7*5)
		vol := tradingVolume
		msg := map[string]interface{}{
			"Symbol":           symbol,
			"SymbolName":       "mock",
			"CurrentPrice":     price,
			"TradingVolume":    vol,
			"CurrentPriceTime": time.Now().Format(time.RFC3339),
			"VWAP":             70000,
		}
		mu.Unlock()

		jsonData, _ := json.Marshal(msg)
		if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			break
		}
		log.Debug().Float64("price", price).Float64("volume", vol).Msg("🌊 モック相場変動")

		time.Sleep(1 * time.Second) // 1秒ごとに価格を更新
	}
}

// 2. トークン発行用のダミーハンドラー
func handleToken(w http.ResponseWriter, r *http.Request) {
	log.Info().Msg("[Mock] 🔑 トークン発行リクエストを受信しました")

	response := map[string]interface{}{
		"ResultCode": 0,
		"Token":      "mock_token_99999",
	}
	writeJSON(w, response)
}

// 3. 分足チャート。端末と同じく新しい順に返す
func handleChart(w http.ResponseWriter, r *http.Request) {
	sym := strings.TrimPrefix(r.URL.Path, "/kabusapi/chart/")
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		count = 200
	}
	log.Info().Str("symbol", sym).Int("count", count).Msg("[Mock] 📊 分足リクエスト")

	now := time.Now().Truncate(time.Minute)
	bars := make([]map[string]interface{}, 0, count)
	for i := 0; i < count; i++ {
		t := now.Add(-time.Duration(i) * time.Minute)
		c := priceAt(-i * 60)
		bars = append(bars, map[string]interface{}{
			"Time":   t.Format("20060102150405"),
			"Open":   c - 50,
			"High":   c + 100,
			"Low":    c - 100,
			"Close":  c,
			"Volume": float64(1000 + i%10*100),
		})
	}
	writeJSON(w, bars)
}

// 4. PUSH配信の銘柄登録
func handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbols []struct {
			Symbol   string `json:"Symbol"`
			Exchange int    `json:"Exchange"`
		} `json:"Symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Info().Interface("symbols", req.Symbols).Msg("[Mock] 📡 銘柄登録")

	writeJSON(w, map[string]interface{}{"RegistList": req.Symbols})
}

// 5. 発注（成行のみ受け付けて即受付番号を返す）
func handleSendOrder(w http.ResponseWriter, r *http.Request) {
	log.Info().Msg("[Mock] 🔫 注文(SendOrder)リクエストを受信しました！")

	var req struct {
		Symbol         string  `json:"Symbol"`
		Side           string  `json:"Side"` // "1": 売, "2": 買
		Qty            float64 `json:"Qty"`
		FrontOrderType int     `json:"FrontOrderType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("[Mock] ⚠️ リクエストの解析に失敗しました")
		writeJSON(w, map[string]interface{}{"Result": 4, "OrderId": ""})
		return
	}

	actionStr := "不明"
	switch req.Side {
	case "1":
		actionStr = "売"
	case "2":
		actionStr = "買"
	}
	log.Info().Str("side", actionStr).Str("symbol", req.Symbol).Float64("qty", req.Qty).Int("front_order_type", req.FrontOrderType).Msg("[Mock] 注文内容")

	mu.Lock()
	orderSeq++
	id := fmt.Sprintf("mock_order_%d", orderSeq)
	mu.Unlock()

	writeJSON(w, map[string]interface{}{
		"Result":  0,
		"OrderId": id,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
