package oracle

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Policy は OHLCV ウィンドウから [-1,1] の行動値を返します
type Policy func(window [][5]float64) float64

// MomentumPolicy は学習済みモデルの代わりに使う決定的な方策です。
// 直近終値のウィンドウ平均からの乖離を tanh で [-1,1] に押し込みます
func MomentumPolicy(window [][5]float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, b := range window {
		sum += b[3]
	}
	mean := sum / float64(len(window))
	if mean <= 0 {
		return 0
	}
	last := window[len(window)-1][3]
	return math.Tanh(100 * (last/mean - 1))
}

type predictPayload struct {
	OHLCVWindow [][]float64 `json:"ohlcv_window" binding:"required"`
}

// NewServer はモック予測サーバーのルーターを組み立てます。
// window は受け付ける足の本数、now は ts の発行に使います
func NewServer(window int, policy Policy, now func() time.Time) *gin.Engine {
	if policy == nil {
		policy = MomentumPolicy
	}
	if now == nil {
		now = time.Now
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "window": window})
	})

	r.POST("/predict", func(c *gin.Context) {
		var p predictPayload
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid JSON: %v", err)})
			return
		}
		rows, err := toWindow(p.OHLCVWindow, window)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// [-1,1] → [0,1]
		w := (policy(rows) + 1) / 2
		c.JSON(http.StatusOK, gin.H{"target_w": clamp01(w), "ts": now().Unix()})
	})

	return r
}

func toWindow(raw [][]float64, window int) ([][5]float64, error) {
	if len(raw) != window {
		return nil, fmt.Errorf("expected shape (%d,5), got %d rows", window, len(raw))
	}
	rows := make([][5]float64, len(raw))
	for i, r := range raw {
		if len(r) != 5 {
			return nil, fmt.Errorf("expected shape (%d,5), row %d has %d columns", window, i, len(r))
		}
		copy(rows[i][:], r)
	}
	return rows, nil
}

func clamp01(w float64) float64 {
	return math.Max(0, math.Min(1, w))
}
