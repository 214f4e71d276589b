package config

import (
	"time"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/metrics"
	"github.com/openobs/metakv/xerrors"
)

// 集群协调后端
const (
	CoordinatorEtcd = "etcd"
	CoordinatorNATS = "nats"
)

// Settings metakv 的完整运行配置
type Settings struct {
	// Coordinator 集群协调后端 (etcd | nats)，默认 etcd
	Coordinator string `mapstructure:"coordinator"`

	// LocalMode 单节点模式，开启后不启动协调后端的后台会话保活任务
	LocalMode bool `mapstructure:"local_mode"`

	Log     clog.Config    `mapstructure:"log"`
	Metrics metrics.Config `mapstructure:"metrics"`
	Etcd    EtcdSettings   `mapstructure:"etcd"`
}

// EtcdSettings etcd 协调后端配置
type EtcdSettings struct {
	// Prefix 所有数据键的存储前缀，默认 "/metakv/cluster"
	Prefix string `mapstructure:"prefix"`

	// Endpoints 连接地址列表
	Endpoints []string `mapstructure:"endpoints"`

	// 认证
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// TLS
	CertAuth   bool   `mapstructure:"cert_auth"`
	CAFile     string `mapstructure:"ca_file"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	DomainName string `mapstructure:"domain_name"`

	// 超时
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`   // 单次命令超时 (默认: 5s)
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`   // 连接超时 (默认: 5s)
	LockWaitTimeout time.Duration `mapstructure:"lock_wait_timeout"` // 锁等待总超时 (默认: 60s)

	// LoadPageSize 列举操作的单页大小 (默认: 1000)
	LoadPageSize int64 `mapstructure:"load_page_size"`
}

// SetDefaults 设置默认值
func (s *Settings) SetDefaults() {
	if s.Coordinator == "" {
		s.Coordinator = CoordinatorEtcd
	}
	if s.Etcd.Prefix == "" {
		s.Etcd.Prefix = "/metakv/cluster"
	}
	if len(s.Etcd.Endpoints) == 0 {
		s.Etcd.Endpoints = []string{"127.0.0.1:2379"}
	}
	if s.Etcd.CommandTimeout <= 0 {
		s.Etcd.CommandTimeout = 5 * time.Second
	}
	if s.Etcd.ConnectTimeout <= 0 {
		s.Etcd.ConnectTimeout = 5 * time.Second
	}
	if s.Etcd.LockWaitTimeout <= 0 {
		s.Etcd.LockWaitTimeout = 60 * time.Second
	}
	if s.Etcd.LoadPageSize <= 0 {
		s.Etcd.LoadPageSize = 1000
	}
}

// Validate 验证配置
func (s *Settings) Validate() error {
	switch s.Coordinator {
	case CoordinatorEtcd, CoordinatorNATS:
	default:
		return xerrors.New("config: unsupported coordinator: " + s.Coordinator)
	}
	if s.Etcd.CertAuth && (s.Etcd.CAFile == "" || s.Etcd.CertFile == "" || s.Etcd.KeyFile == "") {
		return xerrors.New("config: cert_auth requires ca_file, cert_file and key_file")
	}
	return nil
}

// LoadSettings 加载并验证完整运行配置
func LoadSettings(loader Loader) (*Settings, error) {
	var settings Settings
	if err := loader.Unmarshal(&settings); err != nil {
		return nil, xerrors.Wrap(err, "config: unmarshal settings")
	}
	settings.SetDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}
