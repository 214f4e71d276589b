package connector

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// EtcdConfig Etcd 连接配置
type EtcdConfig struct {
	// 基础配置（可选，有默认值）
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	// 核心配置
	Endpoints []string `mapstructure:"endpoints"` // [必填] 连接地址列表
	Username  string   `mapstructure:"username"`  // [可选] 认证用户
	Password  string   `mapstructure:"password"`  // [可选] 认证密码

	// TLS 配置（可选）
	CertAuth   bool   `mapstructure:"cert_auth"`   // 是否开启双向 TLS
	CAFile     string `mapstructure:"ca_file"`     // CA 证书路径
	CertFile   string `mapstructure:"cert_file"`   // 客户端证书路径
	KeyFile    string `mapstructure:"key_file"`    // 客户端私钥路径
	DomainName string `mapstructure:"domain_name"` // TLS ServerName

	// 高级配置（可选，有默认值）
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`       // 连接超时 (默认: 5s)
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time"`    // 心跳间隔 (默认: 10s)
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"` // 心跳超时 (默认: 3s)
}

// setDefaults 设置默认值
func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime == 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

// validate 验证配置
func (c *EtcdConfig) validate() error {
	c.setDefaults()
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints must not be empty")
	}
	if c.CertAuth && (c.CAFile == "" || c.CertFile == "" || c.KeyFile == "") {
		return fmt.Errorf("cert_auth requires ca_file, cert_file and key_file")
	}
	return nil
}

// NATSConfig NATS 连接配置
type NATSConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	URL      string `mapstructure:"url"`      // [必填] 服务器地址，如 nats://127.0.0.1:4222
	Username string `mapstructure:"username"` // [可选] 认证用户
	Password string `mapstructure:"password"` // [可选] 认证密码
	Token    string `mapstructure:"token"`    // [可选] 令牌认证

	Timeout       time.Duration `mapstructure:"timeout"`        // 连接超时 (默认: 5s)
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"` // 重连等待 (默认: 2s)
	MaxReconnects int           `mapstructure:"max_reconnects"` // 最大重连次数 (默认: 60)
	PingInterval  time.Duration `mapstructure:"ping_interval"`  // 心跳间隔 (默认: 2m)
}

func (c *NATSConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 60
	}
	if c.PingInterval == 0 {
		c.PingInterval = 2 * time.Minute
	}
}

func (c *NATSConfig) validate() error {
	c.setDefaults()
	if c.URL == "" {
		return fmt.Errorf("nats url must not be empty")
	}
	return nil
}

// tlsConfig 从证书文件构建 TLS 配置，未开启 CertAuth 时返回 nil
func (c *EtcdConfig) tlsConfig() (*tls.Config, error) {
	if !c.CertAuth {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	caData, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read ca cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caData) {
		return nil, fmt.Errorf("parse ca cert %s: no certificates found", c.CAFile)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ServerName:   c.DomainName,
	}, nil
}
