package dlock

import "time"

// Config 组件静态配置
type Config struct {
	// Prefix 存储前缀；锁键为 "{Prefix}locker{name}"，与数据键隔离
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// DefaultTimeout 默认锁等待总超时（Lock 的 timeout 传 0 时生效）
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout" mapstructure:"default_timeout"`

	// CommandTimeout 单次加锁尝试的命令超时；总超时 / 命令超时 = 尝试次数
	CommandTimeout time.Duration `json:"command_timeout" yaml:"command_timeout" mapstructure:"command_timeout"`

	// SessionTTL 后端会话租约时长；持有者崩溃后，后端侧锁最迟在
	// 该时长后被回收
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl"`
}

func (c *Config) setDefaults() {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 60 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 5 * time.Second
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
