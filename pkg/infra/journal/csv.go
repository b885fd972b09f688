package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/r-umemoto/rebalance-bot/pkg/domain/market"
	"github.com/r-umemoto/rebalance-bot/pkg/domain/portfolio"
)

var header = []string{
	"datetime", "open", "high", "low", "close", "volume",
	"cash", "position", "equity", "target_w",
}

// Row は確定足1本ごとに書き出す1行です
type Row struct {
	Bar     market.Bar
	State   portfolio.State
	TargetW *float64 // 予測しなかったサイクルは nil（空欄で出力）
}

// CSVJournal は追記専用のCSVログです
type CSVJournal struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	path string
}

// Open はファイルを追記モードで開きます。新規（空）ファイルならヘッダを書きます
func Open(path string) (*CSVJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ログファイルを開けません: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ログファイルの状態取得エラー: %w", err)
	}

	j := &CSVJournal{f: f, w: csv.NewWriter(f), path: path}
	if info.Size() == 0 {
		if err := j.w.Write(header); err != nil {
			f.Close()
			return nil, err
		}
		j.w.Flush()
		if err := j.w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return j, nil
}

func (j *CSVJournal) Path() string { return j.path }

// Record は1行を書き込み、すぐにフラッシュします
func (j *CSVJournal) Record(row Row) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Write(Format(row))
	j.w.Flush()
	return j.w.Error()
}

// RecordBar は usecase.BarRecorder の実装です
func (j *CSVJournal) RecordBar(bar market.Bar, st portfolio.State, targetW *float64) error {
	return j.Record(Row{Bar: bar, State: st, TargetW: targetW})
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.w.Flush()
	return j.f.Close()
}

// Format は Row をCSVの列に変換します。
// 現金と総資産は小数点以下を切り捨て、目標ウェイトは小数4桁に丸めます
func Format(row Row) []string {
	b := row.Bar
	equity := row.State.Equity(float64(b.Close))

	target := ""
	if row.TargetW != nil {
		target = decimal.NewFromFloat(*row.TargetW).Round(4).String()
	}

	return []string{
		b.Time.Format("2006-01-02 15:04:05"),
		fmt.Sprint(b.Open),
		fmt.Sprint(b.High),
		fmt.Sprint(b.Low),
		fmt.Sprint(b.Close),
		fmt.Sprint(b.Volume),
		decimal.NewFromFloat(row.State.Cash).Truncate(0).String(),
		fmt.Sprint(row.State.Position),
		decimal.NewFromFloat(equity).Truncate(0).String(),
		target,
	}
}
