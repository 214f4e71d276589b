package clog

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// New 创建一个新的 Logger 实例
//
// config - 日志配置，如果为 nil 会使用默认配置
// opts   - 函数式选项列表，用于命名空间等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := applyOptions(opts...)
	return newLogger(config, options)
}

var (
	defaultLogger atomic.Value
	defaultOnce   sync.Once
)

// Default 返回包级默认 Logger
//
// 未调用 SetDefault 时，首次访问会懒创建一个开发环境配置的 Logger。
func Default() Logger {
	defaultOnce.Do(func() {
		if defaultLogger.Load() == nil {
			logger, err := New(NewDevDefaultConfig())
			if err != nil {
				logger = Discard()
			}
			defaultLogger.CompareAndSwap(nil, logger)
		}
	})
	return defaultLogger.Load().(Logger)
}

// SetDefault 替换包级默认 Logger
func SetDefault(logger Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}
