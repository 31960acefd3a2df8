package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/post-scheduler/internal/engine"
	"github.com/d60-Lab/post-scheduler/pkg/logger"
)

// Runner 执行一轮扫描发布
type Runner interface {
	RunCycle(ctx context.Context, now time.Time, token string) (engine.BatchResult, error)
}

// TokenSource 每轮开始时提供发布用的 LinkedIn 令牌，空串表示当前无凭证
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc 函数适配 TokenSource
type TokenFunc func(ctx context.Context) string

func (f TokenFunc) Token(ctx context.Context) string { return f(ctx) }

type Option func(*Driver)

func WithClock(c Clock) Option { return func(d *Driver) { d.clock = c } }

// WithCycleTimeout 限制单轮的最长耗时，0 表示不限制
func WithCycleTimeout(t time.Duration) Option { return func(d *Driver) { d.timeout = t } }

// Driver 定时驱动发布引擎（轮询驱动）
type Driver struct {
	runner   Runner
	tokens   TokenSource
	clock    Clock
	interval time.Duration
	timeout  time.Duration

	running atomic.Bool

	mu      sync.Mutex
	last    engine.BatchResult
	lastErr error
	cycles  int
}

func New(runner Runner, tokens TokenSource, interval time.Duration, opts ...Option) *Driver {
	if interval <= 0 {
		interval = time.Minute
	}
	d := &Driver{runner: runner, tokens: tokens, clock: SystemClock{}, interval: interval}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start 立即执行一轮，之后按固定间隔执行；返回停止函数。
// 停止函数会等待进行中的一轮结束（或 ctx 到期）。
func (d *Driver) Start(ctx context.Context) func(context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := d.clock.NewTicker(d.interval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		d.tick(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C():
				d.tick(loopCtx)
			}
		}
	}()

	logger.Info("scheduler started", zap.Duration("interval", d.interval))
	return func(stopCtx context.Context) error {
		cancel()
		select {
		case <-done:
			logger.Info("scheduler stopped")
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
}

// Trigger 同步执行一轮；已有一轮在执行时返回 engine.ErrCycleInFlight
func (d *Driver) Trigger(ctx context.Context) (engine.BatchResult, error) {
	return d.run(ctx)
}

// Status 驱动器运行状态
type Status struct {
	Cycles    int                `json:"cycles"`
	Running   bool               `json:"running"`
	Interval  string             `json:"interval"`
	Last      engine.BatchResult `json:"last"`
	LastError string             `json:"last_error,omitempty"`
}

// Status 返回最近一轮的结果
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{Cycles: d.cycles, Running: d.running.Load(), Interval: d.interval.String(), Last: d.last}
	if d.lastErr != nil {
		st.LastError = d.lastErr.Error()
	}
	return st
}

func (d *Driver) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := d.run(ctx)
	switch {
	case errors.Is(err, engine.ErrCycleInFlight):
		logger.Debug("tick skipped: cycle in flight")
	case err != nil:
		logger.Error("scheduled cycle failed", zap.Error(err))
	}
}

func (d *Driver) run(ctx context.Context) (engine.BatchResult, error) {
	if !d.running.CompareAndSwap(false, true) {
		return engine.BatchResult{}, engine.ErrCycleInFlight
	}
	defer d.running.Store(false)

	// 已发出的发布请求不随调用方取消而中断
	cctx := context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(cctx, d.timeout)
		defer cancel()
	}

	res, err := d.runner.RunCycle(cctx, d.clock.Now(), d.tokens.Token(cctx))
	if errors.Is(err, engine.ErrCycleInFlight) {
		return res, err
	}

	d.mu.Lock()
	d.last, d.lastErr = res, err
	d.cycles++
	d.mu.Unlock()
	return res, err
}
