package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTick   = errors.New("価格が0以下のTickです")
	ErrWindowNotFull = errors.New("ウィンドウが満杯になっていません")
)

// Tick はシステム共通の約定データ（証券会社の仕様を一切知らない純粋なデータ）
type Tick struct {
	Symbol string
	Price  int64     // 符号付きで届く端末もあるため、ゲートウェイ側で絶対値にしておく
	Volume int64     // 売り約定は負で届くことがあるため、集計時に絶対値をとる
	Time   time.Time // 受信時刻（壁時計）
}

// Bar は1分足のOHLCVです。確定後は変更しません
type Bar struct {
	Time   time.Time // 分の開始時刻
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume int64
}

// Tuple は予測サーバーに渡す (o, h, l, c, v) の並びを返します
func (b Bar) Tuple() [5]float64 {
	return [5]float64{
		float64(b.Open),
		float64(b.High),
		float64(b.Low),
		float64(b.Close),
		float64(b.Volume),
	}
}

func (b Bar) String() string {
	return fmt.Sprintf("%s O=%d H=%d L=%d C=%d V=%d",
		b.Time.Format("2006-01-02 15:04"), b.Open, b.High, b.Low, b.Close, b.Volume)
}

type Side string

const (
	SIDE_BUY  Side = "BUY"
	SIDE_SELL Side = "SELL"
)

// OrderIntent は1回のリバランス判断で生まれる売買指示です（永続化しない）
type OrderIntent struct {
	Side     Side
	Qty      int64
	RefPrice float64
}

func (o OrderIntent) String() string {
	return fmt.Sprintf("%s %d @~%.0f", o.Side, o.Qty, o.RefPrice)
}

// MarketGateway は証券端末との接続を抽象化した規格です
type MarketGateway interface {
	// Start は端末との接続を開始し、Tickチャネルを返します
	Start(ctx context.Context) (<-chan Tick, error)
	// FetchBars は過去の1分足を古い順に最大count本返します
	FetchBars(ctx context.Context, symbol string, count int) ([]Bar, error)
	// SendOrder は成行注文を送信し、受付番号（ログ用）を返します
	SendOrder(ctx context.Context, symbol string, intent OrderIntent) (string, error)
}
