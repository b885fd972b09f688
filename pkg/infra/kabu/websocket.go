// websocket.go
package kabu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSClient はWebSocket通信を管理する構造体です
type WSClient struct {
	URL    string
	Dialer *websocket.Dialer
}

// NewWSClient はWebSocketクライアントを生成します
func NewWSClient(url string) *WSClient {
	return &WSClient{
		URL:    url,
		Dialer: websocket.DefaultDialer,
	}
}

// Listen はサーバーに接続し、受信したデータをチャネル(ch)に流し続けます。
// 切断されるか ctx が終了するまで戻りません
func (w *WSClient) Listen(ctx context.Context, ch chan<- PushMessage) error {
	// 1. サーバーへ接続
	conn, _, err := w.Dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return fmt.Errorf("WebSocket接続エラー: %w", err)
	}
	defer conn.Close()
	log.Info().Str("url", w.URL).Msg("📡 WebSocket接続成功！価格の監視をスタートします。")

	// ctx が終わったら読み取りを解除するために接続を閉じる
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// 2. データの受信ループ（切断されるまで無限ループ）
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("WebSocket読み取りエラー (切断されました): %w", err)
		}

		// 3. 受け取ったJSONを構造体に変換
		var pushMsg PushMessage
		if err := json.Unmarshal(message, &pushMsg); err != nil {
			log.Warn().Err(err).Msg("JSONパースエラー")
			continue // エラーが起きても止まらずに次のデータを待つ
		}

		// 4. 解析したデータをチャネルを通じてメインロジックへ送る
		select {
		case ch <- pushMsg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
