package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/r-umemoto/rebalance-bot/pkg/infra/metrics"
)

var (
	ErrBadStatus = errors.New("予測サーバーが異常ステータスを返しました")
	ErrMalformed = errors.New("予測レスポンスの形式が不正です")
)

// DefaultTimeouts は1回目は短く、2回目は少し長く待つ設定です
var DefaultTimeouts = []time.Duration{800 * time.Millisecond, 1200 * time.Millisecond}

// PredictRequest は /predict に送るデータです（古い順の N×5 行列）
type PredictRequest struct {
	OHLCVWindow [][5]float64 `json:"ohlcv_window"`
}

// PredictResponse は /predict から返ってくるデータです
type PredictResponse struct {
	TargetW *float64 `json:"target_w"`
	TS      int64    `json:"ts,omitempty"`
}

// Client は予測サーバー（目標ウェイトを返すオラクル）と通信するクライアントです。
// 2回まで試し、どちらも失敗したら最後に取得できた値を返します
type Client struct {
	URL        string
	Timeouts   []time.Duration
	HTTPClient *http.Client

	mu    sync.Mutex
	lastW float64
}

func NewClient(url string, timeouts ...time.Duration) *Client {
	if len(timeouts) == 0 {
		timeouts = DefaultTimeouts
	}
	return &Client{
		URL:        url,
		Timeouts:   timeouts,
		HTTPClient: &http.Client{}, // タイムアウトは試行ごとに context で指定する
	}
}

// Last は最後に取得できた目標ウェイトを返します（未取得なら0）
func (c *Client) Last() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastW
}

// Predict は目標ウェイトを [0,1] で返します。失敗はすべて飲み込み、前回値で代用します
func (c *Client) Predict(ctx context.Context, window [][5]float64) float64 {
	body, err := json.Marshal(PredictRequest{OHLCVWindow: window})
	if err != nil {
		log.Error().Err(err).Msg("予測リクエストのJSON変換エラー")
		return c.fallback()
	}

	var lastErr error
	for i, timeout := range c.Timeouts {
		w, err := c.attempt(ctx, body, timeout)
		if err == nil {
			metrics.PredictAttempts.WithLabelValues("ok").Inc()
			c.mu.Lock()
			c.lastW = w
			c.mu.Unlock()
			return w
		}
		metrics.PredictAttempts.WithLabelValues("error").Inc()
		log.Debug().Err(err).Int("attempt", i+1).Dur("timeout", timeout).Msg("予測呼び出し失敗")
		lastErr = err
	}

	log.Warn().Err(lastErr).Float64("fallback", c.Last()).Msg("⚠️ 予測エラー。前回の目標ウェイトを使います")
	metrics.PredictFallbacks.Inc()
	return c.fallback()
}

func (c *Client) fallback() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastW
}

func (c *Client) attempt(ctx context.Context, body []byte, timeout time.Duration) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("予測API通信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var pr PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// フィールドがなければ0扱い。範囲外はこちらでも丸める
	w := 0.0
	if pr.TargetW != nil {
		w = *pr.TargetW
	}
	return clamp01(w), nil
}
