package rebalance

import (
	"fmt"
	"time"
)

// Cutoff は強制清算を始める時刻（時:分）です
type Cutoff struct {
	Hour   int
	Minute int
}

// ParseCutoff は "15:19" 形式の文字列を読み取ります
func ParseCutoff(s string) (Cutoff, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Cutoff{}, fmt.Errorf("強制清算時刻の形式が不正です %q: %w", s, err)
	}
	return Cutoff{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Cutoff) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// SessionClock は壁時計から「引け間際かどうか」を判定します
type SessionClock struct {
	cutoff Cutoff
	loc    *time.Location
	now    func() time.Time
}

func NewSessionClock(cutoff Cutoff, loc *time.Location, now func() time.Time) *SessionClock {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &SessionClock{cutoff: cutoff, loc: loc, now: now}
}

// Now は注入された時計の現在時刻を返します
func (c *SessionClock) Now() time.Time { return c.now() }

// Over は t が強制清算時刻以降かを返します
func (c *SessionClock) Over(t time.Time) bool {
	t = t.In(c.loc)
	return t.Hour() > c.cutoff.Hour || (t.Hour() == c.cutoff.Hour && t.Minute() >= c.cutoff.Minute)
}
