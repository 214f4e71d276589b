package metrics

// Config 指标配置
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ServiceName 服务名，作为指标资源属性
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// Version 服务版本
	Version string `json:"version" yaml:"version" mapstructure:"version"`

	// Port Prometheus HTTP 端口，0 表示不启动内置服务器
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	// Path 指标暴露路径，默认 "/metrics"
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "metakv"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// NewDevDefaultConfig 返回用于本地开发的默认配置（不启动 HTTP 服务器）
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
	}
}
