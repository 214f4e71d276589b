package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/openobs/metakv/xerrors"
)

// Event 配置变更事件
type Event struct {
	// File 发生变更的配置文件路径
	File string
}

// Loader 配置加载器接口
type Loader interface {
	// Load 初始化并从所有来源加载配置
	Load(ctx context.Context) error

	// Unmarshal 将整棵配置树反序列化到 out
	Unmarshal(out any) error

	// UnmarshalKey 将某个配置节反序列化到 out
	UnmarshalKey(key string, out any) error

	// Get 读取单个配置值
	Get(key string) any

	// OnChange 注册配置文件变更回调
	OnChange(fn func(Event))
}

// loader 实现 Loader 接口
type loader struct {
	v         *viper.Viper
	cfg       *Config
	mu        sync.RWMutex
	callbacks []func(Event)
}

// newLoader 创建一个新的配置加载器（内部使用）
func newLoader(cfg *Config) Loader {
	return &loader{
		v:   viper.New(),
		cfg: cfg,
	}
}

// Load 初始化并从所有来源加载配置
func (l *loader) Load(ctx context.Context) error {
	l.v.SetConfigName(l.cfg.Name)
	l.v.SetConfigType(l.cfg.FileType)

	for _, path := range l.cfg.Paths {
		l.v.AddConfigPath(path)
	}

	// 环境变量（最高优先级）先设置，确保能捕获所有环境变量
	l.v.SetEnvPrefix(l.cfg.EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// .env 文件（高优先级），找不到不算错误
	l.loadDotEnv()

	// 配置文件（最低优先级），找不到不算错误
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return xerrors.Wrapf(err, "failed to read config file %s", l.cfg.Name)
		}
	}

	// 启动文件监听（自动启动，无需手动 Start）
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.mu.RLock()
		callbacks := append([]func(Event){}, l.callbacks...)
		l.mu.RUnlock()

		for _, fn := range callbacks {
			fn(Event{File: e.Name})
		}
	})
	l.v.WatchConfig()

	return nil
}

// loadDotEnv 尝试从搜索路径加载 .env 文件
func (l *loader) loadDotEnv() {
	_ = godotenv.Load()
	for _, path := range l.cfg.Paths {
		_ = godotenv.Load(filepath.Join(path, ".env"))
	}
}

func (l *loader) Unmarshal(out any) error {
	return l.v.Unmarshal(out)
}

func (l *loader) UnmarshalKey(key string, out any) error {
	return l.v.UnmarshalKey(key, out)
}

func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

func (l *loader) OnChange(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, fn)
}
