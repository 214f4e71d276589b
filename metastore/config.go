package metastore

import (
	"strings"
	"time"
)

// Config 组件静态配置
type Config struct {
	// Prefix 所有数据键的存储前缀，尾部的 "/" 会被裁掉
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// CommandTimeout 单次后端命令超时 (默认: 5s)
	CommandTimeout time.Duration `json:"command_timeout" yaml:"command_timeout" mapstructure:"command_timeout"`

	// LockWaitTimeout 读改写操作的锁等待总超时 (默认: 60s)
	LockWaitTimeout time.Duration `json:"lock_wait_timeout" yaml:"lock_wait_timeout" mapstructure:"lock_wait_timeout"`

	// LoadPageSize 列举操作的单页大小 (默认: 1000)
	LoadPageSize int64 `json:"load_page_size" yaml:"load_page_size" mapstructure:"load_page_size"`

	// WatchBufferSize 订阅通道容量，写满后新事件被丢弃 (默认: 65536)
	WatchBufferSize int `json:"watch_buffer_size" yaml:"watch_buffer_size" mapstructure:"watch_buffer_size"`

	// SessionTTL 锁会话租约时长 (默认: 30s)
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl"`
}

func (c *Config) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = "/metakv/cluster"
	}
	c.Prefix = strings.TrimRight(c.Prefix, "/")
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 5 * time.Second
	}
	if c.LockWaitTimeout <= 0 {
		c.LockWaitTimeout = 60 * time.Second
	}
	if c.LoadPageSize <= 0 {
		c.LoadPageSize = 1000
	}
	if c.WatchBufferSize <= 0 {
		c.WatchBufferSize = 65536
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c == nil {
		return ErrConfigNil
	}
	c.setDefaults()
	return nil
}
