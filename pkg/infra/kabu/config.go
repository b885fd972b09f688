// pkg/infra/kabu/config.go
package kabu

// Config は証券端末APIを動かすために必要な設定です
type Config struct {
	// タグをつけるだけで、ライブラリが勝手に読み込んでくれます
	APIURL          string  `envconfig:"KABU_API_URL" default:"http://localhost:18080/kabusapi"`
	Password        string  `envconfig:"KABU_PASSWORD" required:"true"`
	Exchange        int     `envconfig:"KABU_EXCHANGE" default:"1"`
	OrdersPerSecond float64 `envconfig:"ORDERS_PER_SECOND" default:"5"`
}
