// Package metrics 为 metakv 提供统一的指标收集能力。
// 基于 OpenTelemetry 标准构建，提供简洁的 Counter、Gauge 指标接口。
//
// 快速开始：
//
//	cfg := &metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "metakv",
//	    Port:        9090,
//	    Path:        "/metrics",
//	}
//
//	meter, err := metrics.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer meter.Shutdown(ctx)
//
//	counter, _ := meter.Counter("metastore_ops_total", "协调层操作总数")
//	counter.Inc(ctx, metrics.L("op", "put"))
package metrics

import "context"

// Counter 计数器接口
// 用于记录只能增加的累计值，例如操作次数、错误次数、丢弃的事件数等
type Counter interface {
	// Inc 将计数器增加 1
	Inc(ctx context.Context, labels ...Label)

	// Add 将计数器增加给定的值
	// 注意：如果传入负数，大部分监控系统会忽略或报错
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 仪表盘接口
// 用于记录可以任意增减的瞬时值，例如活跃连接数、持有的锁数量等
type Gauge interface {
	// Set 设置仪表盘为给定的值
	Set(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标工厂接口
type Meter interface {
	// Counter 创建累加器
	Counter(name string, desc string) (Counter, error)

	// Gauge 创建仪表盘
	Gauge(name string, desc string) (Gauge, error)

	// Shutdown 关闭底层 Provider，冲刷未导出的指标
	Shutdown(ctx context.Context) error
}
