package kabu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
)

var jst = time.FixedZone("JST", 9*60*60)

func TestVolumeTracker(t *testing.T) {
	var v VolumeTracker

	assert.Equal(t, int64(0), v.Next(1000), "1回目は基準値を記録するだけ")
	assert.Equal(t, int64(200), v.Next(1200))
	assert.Equal(t, int64(0), v.Next(1200), "気配のみの更新")
	assert.Equal(t, int64(0), v.Next(50), "累積が戻ったら基準を取り直す")
	assert.Equal(t, int64(30), v.Next(80))
}

// newTerminal は端末REST APIの最小限のモックです
func newTerminal(t *testing.T, orders chan<- OrderRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/kabusapi/token", func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.APIPassword != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(TokenResponse{ResultCode: 0, Token: "tkn"})
	})
	mux.HandleFunc("/kabusapi/chart/005930", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tkn", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "1", r.URL.Query().Get("minutes"))
		// 新しい順。終値は前日比の符号付き
		json.NewEncoder(w).Encode([]ChartBar{
			{Time: "20240301090200", Open: 103, High: 104, Low: 102, Close: -103, Volume: 30},
			{Time: "broken", Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
			{Time: "20240301090100", Open: 101, High: 102, Low: 100, Close: 102, Volume: 20},
			{Time: "20240301090000", Open: 100, High: 101, Low: 99, Close: 101, Volume: 10},
		})
	})
	mux.HandleFunc("/kabusapi/register", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var req RegisterSymbolRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(RegisterSymbolResponse{RegistList: req.Symbols})
	})
	mux.HandleFunc("/kabusapi/sendorder", func(w http.ResponseWriter, r *http.Request) {
		var req OrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if orders != nil {
			orders <- req
		}
		json.NewEncoder(w).Encode(OrderResponse{Result: 0, OrderId: "ord-1"})
	})
	return httptest.NewServer(mux)
}

func newTestGateway(t *testing.T, srv *httptest.Server) *MarketGateway {
	t.Helper()
	cfg := Config{APIURL: srv.URL + "/kabusapi", Password: "secret", Exchange: 1, OrdersPerSecond: 100}
	client := NewKabuClient(cfg)
	require.NoError(t, client.GetToken(context.Background()))
	return NewMarketGateway(client, NewWSClient(""), cfg, jst)
}

func TestKabuClient_GetTokenRejected(t *testing.T) {
	srv := newTerminal(t, nil)
	defer srv.Close()

	client := NewKabuClient(Config{APIURL: srv.URL + "/kabusapi", Password: "wrong"})
	assert.Error(t, client.GetToken(context.Background()))
	assert.Empty(t, client.Token)
}

func TestMarketGateway_FetchBarsOldestFirst(t *testing.T) {
	srv := newTerminal(t, nil)
	defer srv.Close()
	g := newTestGateway(t, srv)

	bars, err := g.FetchBars(context.Background(), "005930", 10)
	require.NoError(t, err)
	require.Len(t, bars, 3, "時刻を解釈できない足は捨てる")

	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, jst), bars[0].Time)
	assert.Equal(t, int64(101), bars[0].Close)
	assert.Equal(t, int64(102), bars[1].Close)
	assert.Equal(t, market.Bar{
		Time: time.Date(2024, 3, 1, 9, 2, 0, 0, jst), Open: 103, High: 104, Low: 102, Close: 103, Volume: 30,
	}, bars[2])
}

func TestMarketGateway_SubscribeAndSendOrder(t *testing.T) {
	orders := make(chan OrderRequest, 1)
	srv := newTerminal(t, orders)
	defer srv.Close()
	g := newTestGateway(t, srv)

	require.NoError(t, g.Subscribe(context.Background(), "005930"))

	id, err := g.SendOrder(context.Background(), "005930", market.OrderIntent{Side: market.SIDE_BUY, Qty: 140, RefPrice: 70000})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", id)

	req := <-orders
	assert.Equal(t, "005930", req.Symbol)
	assert.Equal(t, string(SIDE_BUY), req.Side)
	assert.Equal(t, int64(140), req.Qty)
	assert.Equal(t, int32(10), req.FrontOrderType)
	assert.Equal(t, int32(2), req.DelivType)
	assert.Zero(t, req.Price)
}

func TestMarketGateway_StartConvertsPushMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range []PushMessage{
			{Symbol: "005930", CurrentPrice: -70000, TradingVolume: 1000},
			{Symbol: "", CurrentPrice: 1},
			{Symbol: "005930", CurrentPrice: 70100, TradingVolume: 1150},
		} {
			b, _ := json.Marshal(m)
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
		// クライアントが切るまで待つ
		conn.ReadMessage()
	}))
	defer ws.Close()

	stamp := time.Date(2024, 3, 1, 9, 0, 5, 0, jst)
	g := NewMarketGateway(NewKabuClient(Config{}), NewWSClient("ws"+strings.TrimPrefix(ws.URL, "http")), Config{}, jst)
	g.now = func() time.Time { return stamp }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks, err := g.Start(ctx)
	require.NoError(t, err)

	var got []market.Tick
	for len(got) < 2 {
		select {
		case tk := <-ticks:
			got = append(got, tk)
		case <-time.After(2 * time.Second):
			t.Fatal("Tickが届きません")
		}
	}

	assert.Equal(t, market.Tick{Symbol: "005930", Price: 70000, Volume: 0, Time: stamp}, got[0])
	assert.Equal(t, market.Tick{Symbol: "005930", Price: 70100, Volume: 150, Time: stamp}, got[1])

	cancel()
	select {
	case _, ok := <-ticks:
		for ok {
			_, ok = <-ticks
		}
	case <-time.After(2 * time.Second):
		t.Fatal("停止後にチャネルが閉じません")
	}
}
