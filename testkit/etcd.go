package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/openobs/metakv/connector"
)

// GetEtcdConfig 返回 Etcd 测试配置
// 默认连接 localhost:2379
func GetEtcdConfig() *connector.EtcdConfig {
	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 3 * time.Second,
	}
}

// GetEtcdConnector 获取 Etcd 连接器，集群不可达时跳过当前测试
func GetEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()

	cfg := GetEtcdConfig()
	conn, err := connector.NewEtcd(cfg, connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create etcd connector: %v", err)
	}

	if err := conn.Connect(context.Background()); err != nil {
		_ = conn.Close()
		t.Skipf("etcd not reachable, skipping: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}
