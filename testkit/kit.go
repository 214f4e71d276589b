// Package testkit 提供跨包共享的测试辅助设施。
//
// 集成测试通过这里获取连接真实协调后端的连接器；后端不可达时测试会被
// 跳过而不是失败，便于在无集群的环境下跑单元测试。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/metrics"
)

// NewLogger 返回一个用于测试的 logger
// 输出开发环境格式，适合本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig())
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回一个用于测试的 meter，不实际导出指标
func NewMeter() metrics.Meter {
	return metrics.Discard()
}

// NewContext 返回一个带超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的键前缀，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}
