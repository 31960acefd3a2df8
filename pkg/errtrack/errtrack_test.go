package errtrack

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/post-scheduler/config"
)

func TestInit_EmptyDSNDisables(t *testing.T) {
	require.NoError(t, Init(config.SentryConfig{}))
	assert.False(t, Enabled())

	// 关闭状态下均为空操作
	Capture(errors.New("boom"), map[string]string{"post_id": "p1"})
	CapturePanic("panic")
	Flush(time.Millisecond)
}

func TestInit_InvalidDSN(t *testing.T) {
	err := Init(config.SentryConfig{DSN: "not a dsn"})
	assert.Error(t, err)
	assert.False(t, Enabled())
}
