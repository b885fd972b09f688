package kabu

// トークン取得リクエスト用（こちらから送るデータ）
type TokenRequest struct {
	APIPassword string `json:"APIPassword"`
}

// トークン取得レスポンス用（APIから返ってくるデータ）
type TokenResponse struct {
	ResultCode int    `json:"ResultCode"`
	Token      string `json:"Token"`
}

// ChartBar は分足チャートAPIが返す1本分のデータです（新しい順に並んで届く）
type ChartBar struct {
	Time   string  `json:"Time"` // 約定時刻 yyyyMMddHHmmss
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"` // 前日比の符号付きで届くことがある
	Volume float64 `json:"Volume"`
}

// PushMessage はWebSocketで降ってくる時価情報です
type PushMessage struct {
	Symbol        string  `json:"Symbol"`
	SymbolName    string  `json:"SymbolName"`
	CurrentPrice  float64 `json:"CurrentPrice"`  // 符号付きで届くことがある
	TradingVolume float64 `json:"TradingVolume"` // 当日の累積出来高
	Time          string  `json:"CurrentPriceTime"`
	VWAP          float64 `json:"VWAP"`
}

// OrderRequest は成行注文を発注するためのリクエストデータです
// https://kabucom.github.io/kabusapi/reference/index.html#operation/sendorderPost
type OrderRequest struct {
	Symbol         string  `json:"Symbol"`         // 銘柄コード
	Exchange       int     `json:"Exchange"`       // 市場コード (1: 東証)
	SecurityType   int     `json:"SecurityType"`   // 商品種別 (1: 株式)
	Side           string  `json:"Side"`           // 売買区分 ("1": 売, "2": 買)
	CashMargin     int     `json:"CashMargin"`     // 信用区分 (1: 現物)
	DelivType      int32   `json:"DelivType"`      // 受渡区分 (0: 指定なし, 2: お預かり金)
	AccountType    int     `json:"AccountType"`    // 口座種別 (4: 特定口座)
	Qty            int64   `json:"Qty"`            // 注文数量
	Price          float64 `json:"Price"`          // 注文価格 (0: 成行)
	ExpireDay      int     `json:"ExpireDay"`      // 注文有効期限 (0: 当日)
	FrontOrderType int32   `json:"FrontOrderType"` // 執行条件 (10: 成行)
}

// OrderResponse は発注後のレスポンスデータです
type OrderResponse struct {
	Result  int    `json:"Result"`  // 結果コード (0: 成功)
	OrderId string `json:"OrderId"` // 受付番号
}

// RegisterSymbolRequest はPUSH配信の銘柄登録リクエストです
type RegisterSymbolRequest struct {
	Symbols []RegisterSymbolsItem `json:"Symbols"`
}

type RegisterSymbolsItem struct {
	Symbol   string `json:"Symbol"`
	Exchange int    `json:"Exchange"`
}

type RegisterSymbolResponse struct {
	RegistList []RegisterSymbolsItem `json:"RegistList"`
}

type Side string

const (
	SIDE_BUY  Side = "2"
	SIDE_SELL Side = "1"
)
