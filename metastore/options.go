package metastore

import (
	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/metrics"
)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// Option 配置 Store 的选项
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger: clog.Default(),
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger.WithNamespace("metastore")
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}
