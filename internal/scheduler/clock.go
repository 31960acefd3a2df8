package scheduler

import "time"

// Clock 时间来源，测试中可替换为手动推进的实现
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker 对 time.Ticker 的抽象
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock 基于 time 包的真实时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }
