// Package metastore 是 metakv 的集群元数据协调层。
//
// 它在协调后端（etcd）之上提供一个键值存储契约，承载集群内各节点共享的
// 元数据：读写删、带分布式锁的读改写、前缀列举、计数、变更订阅与统计。
//
// 键空间约定：
//   - 所有键挂在配置的存储前缀之下，返回给调用方的键一律剥离该前缀
//   - 带版本的条目以 "{key}/{start_dt}" 形式存储，Get 读取键序最大
//     （即最新）的一条
//   - 锁键挂在 "{prefix}locker" 之下，与数据键天然隔离
//
// 基本使用：
//
//	conn, _ := connector.NewEtcd(&connector.EtcdConfig{
//	    Endpoints: []string{"127.0.0.1:2379"},
//	})
//	_ = conn.Connect(ctx)
//
//	store, _ := metastore.NewEtcd(conn, &metastore.Config{
//	    Prefix: "/metakv/cluster",
//	}, metastore.WithLogger(logger))
//	defer store.Close()
//
//	_ = store.Put(ctx, "/nodes/node-1", payload, 0)
//	value, err := store.Get(ctx, "/nodes/node-1")
package metastore

import (
	"context"

	"github.com/openobs/metakv/connector"
	"github.com/openobs/metakv/xerrors"
)

// 集群协调后端
const (
	CoordinatorEtcd = "etcd"
	CoordinatorNATS = "nats"
)

// Store 集群元数据存储契约
//
// 所有方法均为并发安全。键参数是剥离了存储前缀的相对键，
// 返回的键同样不含存储前缀。
type Store interface {
	// Get 读取键下最新的一条值；键不存在返回 ErrKeyNotExists
	Get(ctx context.Context, key string) ([]byte, error)

	// Put 写入值；startDt 大于 0 时以 "/{start_dt}" 作为键的版本后缀
	Put(ctx context.Context, key string, value []byte, startDt int64) error

	// Delete 删除键；withPrefix 为 true 时删除该前缀下的全部键
	Delete(ctx context.Context, key string, withPrefix bool, startDt int64) error

	// GetForUpdate 在集群级互斥锁保护下执行读改写
	//
	// 锁覆盖读取、回调与全部写入；任何退出路径（回调出错、写入失败、
	// 上下文取消）都保证释放锁。回调返回错误时不产生任何写入，
	// 错误以 ErrUpdateRejected 类别向上传播。
	GetForUpdate(ctx context.Context, key string, startDt int64, fn UpdateFunc) error

	// List 列举前缀下的全部键值
	List(ctx context.Context, prefix string) (map[string][]byte, error)

	// ListKeys 列举前缀下的全部键
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	// ListValues 列举前缀下的全部值
	ListValues(ctx context.Context, prefix string) ([][]byte, error)

	// ListValuesByStartDt 按版本时间戳区间 [minDt, maxDt] 过滤列举；
	// minDt 和 maxDt 均为 0 时返回全部值，版本号记为 0
	ListValuesByStartDt(ctx context.Context, prefix string, minDt, maxDt int64) ([]VersionedValue, error)

	// Count 统计前缀下的键数量
	Count(ctx context.Context, prefix string) (int64, error)

	// Watch 订阅前缀下的变更事件
	//
	// 返回的通道有界；消费不及时会丢弃新事件（只观测到投递间隙，
	// 不会阻塞存储）。通道在订阅终止时关闭。
	Watch(ctx context.Context, prefix string) (<-chan Event, error)

	// Stats 返回后端存储的总体统计
	Stats(ctx context.Context) (Stats, error)

	// CreateTable 为与其他后端保持接口一致的空操作
	CreateTable(ctx context.Context) error

	// AddStartDtColumn 为与其他后端保持接口一致的空操作
	AddStartDtColumn(ctx context.Context) error

	// Close 关闭存储，终止全部订阅并释放锁会话
	Close() error
}

// New 按协调后端类型创建 Store
//
// 目前只有 etcd 后端有完整实现；选择其他后端返回
// ErrCoordinatorUnsupported。
func New(coordinator string, conn connector.Connector, cfg *Config, opts ...Option) (Store, error) {
	switch coordinator {
	case CoordinatorEtcd:
		etcdConn, ok := conn.(connector.EtcdConnector)
		if !ok {
			return nil, xerrors.Wrapf(ErrConnectorNil, "coordinator %s requires an etcd connector", coordinator)
		}
		return NewEtcd(etcdConn, cfg, opts...)
	default:
		return nil, xerrors.Wrapf(ErrCoordinatorUnsupported, "coordinator: %s", coordinator)
	}
}
