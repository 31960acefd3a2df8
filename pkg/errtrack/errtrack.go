package errtrack

import (
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/d60-Lab/post-scheduler/config"
)

var enabled atomic.Bool

// Init 初始化 Sentry；DSN 为空时保持关闭，Capture 变为空操作
func Init(cfg config.SentryConfig) error {
	if cfg.DSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	}); err != nil {
		return err
	}
	enabled.Store(true)
	return nil
}

// Enabled 是否已启用上报
func Enabled() bool { return enabled.Load() }

// Capture 上报错误并附带标签
func Capture(err error, tags map[string]string) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic 上报 recover 得到的 panic 值
func CapturePanic(v interface{}) {
	if v == nil || !enabled.Load() {
		return
	}
	sentry.CurrentHub().Recover(v)
}

// Flush 等待事件发送完成
func Flush(timeout time.Duration) {
	if enabled.Load() {
		sentry.Flush(timeout)
	}
}
