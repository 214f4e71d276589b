// Package config 为 metakv 提供基于 Viper 的配置加载能力。
//
// 配置来源与优先级（从高到低）：
//   - 环境变量（前缀 METAKV_，层级用 "_" 分隔，如 METAKV_ETCD_PREFIX）
//   - .env 文件
//   - 配置文件（默认 metakv.yaml，搜索 "." 和 "./config"）
//
// 基本使用：
//
//	loader, _ := config.New(nil)
//	if err := loader.Load(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	var settings config.Settings
//	_ = loader.Unmarshal(&settings)
package config

import "strings"

// Config 加载器配置
type Config struct {
	Name      string   // 配置文件名称（不含扩展名），默认 "metakv"
	Paths     []string // 配置文件搜索路径，默认 ["./", "./config"]
	FileType  string   // 配置文件类型 (yaml, json, etc.)
	EnvPrefix string   // 环境变量前缀，默认 "METAKV"
}

// validate 设置默认值并验证配置
func (c *Config) validate() error {
	if c.Name == "" {
		c.Name = "metakv"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "METAKV"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	return nil
}

// New 创建配置加载器。
//
// 如果 cfg 为 nil，使用默认配置。
func New(cfg *Config) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return newLoader(cfg), nil
}
