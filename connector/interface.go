// Package connector 为 metakv 提供统一的连接管理能力。
//
// 核心特性：
//   - 统一抽象：通过 Connector 接口提供一致的连接管理 API
//   - 类型安全：通过 TypedConnector[T] 泛型接口确保编译时类型检查
//   - 并发安全：所有公开方法均为并发安全，支持多协程同时访问
//   - 资源管理：遵循"谁创建，谁负责释放"原则，Close() 应在应用层调用
//
// 设计理念：
//   - 显式依赖注入：通过构造函数注入依赖，避免全局状态
//   - 共享句柄：协调层的所有组件共用同一个多路复用的客户端连接
//   - 幂等连接：Connect() 方法可安全重复调用
//
// 基本使用：
//
//	cfg := &connector.EtcdConfig{
//	    Endpoints: []string{"127.0.0.1:2379"},
//	}
//	conn, err := connector.NewEtcd(cfg, connector.WithLogger(logger))
//	if err != nil {
//	    panic(err)
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//	    panic(err)
//	}
//
//	client := conn.GetClient()
//
// 资源所有权：
//
//	Connector 拥有底层连接的生命周期，应通过 defer 确保 Close() 被调用。
//	组件（如 metastore、dlock）仅借用 Connector，不应调用 Close()。
package connector

import (
	"context"

	"github.com/nats-io/nats.go"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 定义所有连接器的通用行为。
//
// 接口方法均为并发安全，可从多个协程同时调用。
type Connector interface {
	// Connect 建立连接。
	//
	// 此方法是幂等的，可安全多次调用。连接过程阻塞直到成功或失败。
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源。
	//
	// 重要：应在应用层通过 defer 确保调用，遵循"谁创建，谁负责释放"原则。
	Close() error

	// HealthCheck 检查连接健康状态。
	//
	// 通过发送测试请求验证连接可用性。此方法会更新内部健康状态缓存，
	// 可通过 IsHealthy() 快速读取。
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回缓存的健康状态。
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志记录和指标标识。
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。
//
// 类型参数 T 是客户端类型，如 *clientv3.Client。
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端实例。
	//
	// 注意：在 Close() 之后调用可能返回 nil。
	GetClient() T
}

// EtcdConnector Etcd 连接器接口。
//
// 提供对 Etcd 键值存储的连接管理，承载协调层的全部网络交互：
// 键值读写、分布式锁、租约与变更订阅。
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// NATSConnector NATS 连接器接口。
//
// 备选协调后端的连接句柄；协调层选择 NATS 时由其承载集群事件。
type NATSConnector interface {
	TypedConnector[*nats.Conn]
}
