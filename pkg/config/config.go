// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/rebalance"
	"github.com/r-umemoto/rebalance-bot/pkg/infra/kabu"
)

// AppConfig はシステム全体の設定です
type AppConfig struct {
	BrokerType  string      `envconfig:"BROKER_TYPE" default:"kabu"`
	Kabu        kabu.Config // ネストされた構造体も、タグに従って自動で読み込まれます
	Trading     TradingConfig
	Oracle      OracleConfig
	LogPath     string `envconfig:"LOG_PATH" default:"trade_log.csv"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR"` // 空なら /metrics を公開しない
	ConfigFile  string `envconfig:"CONFIG_FILE"`  // 売買パラメータを上書きするYAML
}

// TradingConfig は売買・リスク関連のパラメータです（起動時に固定）
type TradingConfig struct {
	Symbol             string        `envconfig:"SYMBOL" default:"005930" yaml:"symbol"`
	WindowSize         int           `envconfig:"WINDOW_SIZE" default:"12" yaml:"window_size"`
	SeedBars           int           `envconfig:"SEED_BARS" default:"200" yaml:"seed_bars"`
	FeeRate            float64       `envconfig:"FEE_RATE" default:"0.0015" yaml:"fee_rate"`
	SlippageRate       float64       `envconfig:"SLIPPAGE_RATE" default:"0.0005" yaml:"slippage_rate"`
	InitialCash        float64       `envconfig:"INITIAL_CASH" default:"10000000" yaml:"initial_cash"`
	MaxPositionValue   float64       `envconfig:"MAX_POSITION_VALUE" default:"15000000" yaml:"max_position_value"`
	OrderCooldown      time.Duration `envconfig:"ORDER_COOLDOWN" default:"1s" yaml:"order_cooldown"`
	ForceLiquidateTime string        `envconfig:"FORCE_LIQUIDATE_TIME" default:"15:19" yaml:"force_liquidate_time"`
	SessionTimezone    string        `envconfig:"SESSION_TIMEZONE" default:"Local" yaml:"session_timezone"`
	MinTradeQty        int64         `envconfig:"MIN_TRADE_QTY" default:"1" yaml:"min_trade_qty"`
	MinRebalanceRatio  float64       `envconfig:"MIN_REBALANCE_RATIO" default:"0.03" yaml:"min_rebalance_ratio"`
	TradeBlockQty      int64         `envconfig:"TRADE_BLOCK_QTY" default:"10" yaml:"trade_block_qty"`
	MinOrderValue      float64       `envconfig:"MIN_ORDER_VALUE" default:"300000" yaml:"min_order_value"`
	AggressionGain     float64       `envconfig:"AGGRESSION_GAIN" default:"1.5" yaml:"aggression_gain"`
	AllowLiveTrading   bool          `envconfig:"ALLOW_LIVE_TRADING" default:"false" yaml:"allow_live_trading"`
}

// OracleConfig は予測サーバーの設定です
type OracleConfig struct {
	URL      string          `envconfig:"PREDICT_URL" default:"http://127.0.0.1:8000/predict"`
	Timeouts []time.Duration `envconfig:"PREDICT_TIMEOUTS" default:"800ms,1200ms"`
}

// Load は環境変数から設定を自動でマッピングして返します
func Load() (*AppConfig, error) {
	// 1. .envファイルがあれば読み込み、OSの環境変数にセットする
	// ※ 本番環境など .env が存在しない場合もあるため、エラーは無視（_）します
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	// 2. YAMLがあれば売買パラメータを上書きする
	if cfg.ConfigFile != "" {
		if err := cfg.Trading.overlay(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (t *TradingConfig) overlay(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルを読めません: %w", err)
	}
	if err := yaml.Unmarshal(b, t); err != nil {
		return fmt.Errorf("設定ファイルの解析エラー (%s): %w", path, err)
	}
	return nil
}

// Validate はありえない設定を起動時にはじきます
func (c *AppConfig) Validate() error {
	t := c.Trading
	var errs []error
	if t.Symbol == "" {
		errs = append(errs, errors.New("SYMBOL が空です"))
	}
	if t.WindowSize <= 0 {
		errs = append(errs, fmt.Errorf("WINDOW_SIZE は1以上: %d", t.WindowSize))
	}
	if t.SeedBars < t.WindowSize {
		errs = append(errs, fmt.Errorf("SEED_BARS(%d) は WINDOW_SIZE(%d) 以上にしてください", t.SeedBars, t.WindowSize))
	}
	if t.FeeRate < 0 || t.SlippageRate < 0 || t.FeeRate+t.SlippageRate >= 1 {
		errs = append(errs, fmt.Errorf("手数料・スリッページが不正です: fee=%v slippage=%v", t.FeeRate, t.SlippageRate))
	}
	if t.InitialCash < 0 {
		errs = append(errs, fmt.Errorf("INITIAL_CASH が負です: %v", t.InitialCash))
	}
	if t.AggressionGain <= 0 {
		errs = append(errs, fmt.Errorf("AGGRESSION_GAIN は正の値: %v", t.AggressionGain))
	}
	if t.OrderCooldown < 0 {
		errs = append(errs, fmt.Errorf("ORDER_COOLDOWN が負です: %v", t.OrderCooldown))
	}
	if _, err := rebalance.ParseCutoff(t.ForceLiquidateTime); err != nil {
		errs = append(errs, err)
	}
	if _, err := t.Location(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Oracle.Timeouts) == 0 {
		errs = append(errs, errors.New("PREDICT_TIMEOUTS が空です"))
	}
	return errors.Join(errs...)
}

// Location は取引時間の判定に使うタイムゾーンを返します
func (t TradingConfig) Location() (*time.Location, error) {
	if t.SessionTimezone == "" || t.SessionTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(t.SessionTimezone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーンが不正です %q: %w", t.SessionTimezone, err)
	}
	return loc, nil
}

// RebalanceParams はリバランスエンジン用のパラメータに変換します
func (t TradingConfig) RebalanceParams() rebalance.Params {
	return rebalance.Params{
		MaxPositionValue:  t.MaxPositionValue,
		Cooldown:          t.OrderCooldown,
		MinTradeQty:       t.MinTradeQty,
		MinRebalanceRatio: t.MinRebalanceRatio,
		TradeBlockQty:     t.TradeBlockQty,
		MinOrderValue:     t.MinOrderValue,
		AggressionGain:    t.AggressionGain,
	}
}
