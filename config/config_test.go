package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "metakv.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return dir
}

func TestLoad_FromFile(t *testing.T) {
	dir := writeConfigFile(t, `
coordinator: etcd
local_mode: true
etcd:
  prefix: /test/cluster
  endpoints:
    - 127.0.0.1:2379
    - 127.0.0.1:22379
  command_timeout: 3s
  load_page_size: 500
`)

	loader, err := New(&Config{Paths: []string{dir}})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	settings, err := LoadSettings(loader)
	require.NoError(t, err)

	assert.Equal(t, CoordinatorEtcd, settings.Coordinator)
	assert.True(t, settings.LocalMode)
	assert.Equal(t, "/test/cluster", settings.Etcd.Prefix)
	assert.Len(t, settings.Etcd.Endpoints, 2)
	assert.Equal(t, 3*time.Second, settings.Etcd.CommandTimeout)
	assert.Equal(t, int64(500), settings.Etcd.LoadPageSize)
	// 未设置的字段取默认值
	assert.Equal(t, 60*time.Second, settings.Etcd.LockWaitTimeout)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	loader, err := New(&Config{Paths: []string{t.TempDir()}})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	settings, err := LoadSettings(loader)
	require.NoError(t, err)

	assert.Equal(t, CoordinatorEtcd, settings.Coordinator)
	assert.Equal(t, "/metakv/cluster", settings.Etcd.Prefix)
	assert.Equal(t, []string{"127.0.0.1:2379"}, settings.Etcd.Endpoints)
	assert.Equal(t, int64(1000), settings.Etcd.LoadPageSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := writeConfigFile(t, `
etcd:
  prefix: /from/file
`)
	t.Setenv("METAKV_ETCD_PREFIX", "/from/env")

	loader, err := New(&Config{Paths: []string{dir}})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, "/from/env", loader.Get("etcd.prefix"))
}

func TestSettings_Validate(t *testing.T) {
	s := &Settings{Coordinator: "zookeeper"}
	s.SetDefaults()
	// SetDefaults 不覆盖已设置的值
	assert.Error(t, s.Validate())

	s = &Settings{}
	s.SetDefaults()
	s.Etcd.CertAuth = true
	assert.Error(t, s.Validate())

	s.Etcd.CAFile = "ca.pem"
	s.Etcd.CertFile = "cert.pem"
	s.Etcd.KeyFile = "key.pem"
	assert.NoError(t, s.Validate())
}
