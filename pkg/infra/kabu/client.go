package kabu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// KabuClient は証券端末のREST APIと通信するためのクライアント構造体です
type KabuClient struct {
	BaseURL     string
	Token       string
	ApiPassword string
	HTTPClient  *http.Client
}

// NewKabuClient は新しいAPIクライアントを生成するコンストラクタです
func NewKabuClient(config Config) *KabuClient {
	return &KabuClient{
		BaseURL: config.APIURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second, // タイムアウトをデフォルトでDI
		},
		ApiPassword: config.Password,
	}
}

// doRequest はすべてのAPI呼び出しの基盤となる内部メソッドです。
// ここでURLの結合と、共通ヘッダー（トークンなど）のセットを必ず行います。
func (c *KabuClient) doRequest(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("リクエストのJSON変換エラー: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, reader)
	if err != nil {
		return nil, err
	}

	// 共通ヘッダーの自動セット
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("X-API-KEY", c.Token)
	}

	return c.HTTPClient.Do(req)
}

// decode はステータスを確認してからJSONを構造体に流し込みます
func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return nil
}

// --- 以下、ビジネスロジック（各APIの実装） ---

// GetToken はパスワードを使って認証を行い、クライアント自身にトークンをセットします
func (c *KabuClient) GetToken(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/token", TokenRequest{APIPassword: c.ApiPassword})
	if err != nil {
		return fmt.Errorf("API通信エラー: %w", err)
	}

	var tokenResp TokenResponse
	if err := decode(resp, &tokenResp); err != nil {
		return err
	}
	if tokenResp.ResultCode != 0 {
		return fmt.Errorf("トークン取得失敗 (ResultCode: %d)", tokenResp.ResultCode)
	}

	// 取得したトークンをクライアント自身に保持させる
	c.Token = tokenResp.Token
	return nil
}

// GetChart は1分足を新しい順に最大count本取得します
func (c *KabuClient) GetChart(ctx context.Context, symbol string, count int) ([]ChartBar, error) {
	endpoint := fmt.Sprintf("/chart/%s?minutes=1&count=%d", symbol, count)

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("分足API通信エラー: %w", err)
	}

	var bars []ChartBar
	if err := decode(resp, &bars); err != nil {
		return nil, fmt.Errorf("分足データ解析エラー: %w", err)
	}
	return bars, nil
}

// SendOrder は構成した注文リクエストをAPIに送信し、注文を実行します
func (c *KabuClient) SendOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/sendorder", req)
	if err != nil {
		return nil, fmt.Errorf("発注API通信エラー: %w", err)
	}

	var orderResp OrderResponse
	if err := decode(resp, &orderResp); err != nil {
		return nil, fmt.Errorf("発注レスポンス解析エラー: %w", err)
	}

	// サーバーからエラーが返ってきていないかチェック
	if orderResp.Result != 0 {
		return nil, fmt.Errorf("発注失敗 (ResultCode: %d)", orderResp.Result)
	}
	return &orderResp, nil
}

// RegisterSymbol はPUSH配信の対象銘柄を登録します
func (c *KabuClient) RegisterSymbol(ctx context.Context, req RegisterSymbolRequest) (*RegisterSymbolResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, "/register", req)
	if err != nil {
		return nil, fmt.Errorf("銘柄登録API通信エラー: %w", err)
	}

	var regResp RegisterSymbolResponse
	if err := decode(resp, &regResp); err != nil {
		return nil, err
	}
	return &regResp, nil
}
