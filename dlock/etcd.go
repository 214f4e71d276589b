package dlock

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/openobs/metakv/connector"
	"github.com/openobs/metakv/xerrors"
)

// backend 把协调后端的互斥原语抽象出来，便于不依赖真实集群测试
// 重试与生命周期逻辑
type backend interface {
	// newMutex 为一次加锁创建后端句柄
	newMutex(ctx context.Context, key string) (backendMutex, error)
	close() error
}

// backendMutex 单把锁的后端句柄
type backendMutex interface {
	// lock 发起一次加锁尝试，成功返回后端颁发的持有凭据
	lock(ctx context.Context) (token string, err error)
	unlock(ctx context.Context) error
	// release 归还句柄占用的后端资源；加锁失败或释放锁之后调用
	release() error
}

// etcdBackend 基于 concurrency.Session 的 etcd 后端
//
// 每把锁使用独立的会话（独立租约）：同一进程内并发加同名锁时，
// 共享会话会让 concurrency.Mutex 误判持有权，独立会话才有互斥语义。
// 会话租约 TTL 是持有者崩溃后后端侧锁被回收的上限。
type etcdBackend struct {
	client     *clientv3.Client
	ttlSeconds int
}

type etcdMutex struct {
	session *concurrency.Session
	mutex   *concurrency.Mutex
}

// NewEtcd 创建基于 Etcd 的 Locker
//
// 使用示例:
//
//	etcdConn, _ := connector.NewEtcd(etcdConfig)
//	locker, _ := dlock.NewEtcd(etcdConn, &dlock.Config{
//	    Prefix: "/metakv/cluster",
//	}, dlock.WithLogger(logger))
func NewEtcd(conn connector.EtcdConnector, cfg *Config, opts ...Option) (*Locker, error) {
	if conn == nil {
		return nil, ErrConnectorNil
	}
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}

	client := conn.GetClient()
	if client == nil {
		return nil, ErrConnectorNil
	}

	b := &etcdBackend{
		client:     client,
		ttlSeconds: int(cfg.SessionTTL.Seconds()),
	}
	return newLocker(b, cfg, opt)
}

func (b *etcdBackend) newMutex(ctx context.Context, key string) (backendMutex, error) {
	// 会话不绑定请求上下文：锁的释放由显式的 release 负责，
	// 请求取消不应提前杀死续约
	session, err := concurrency.NewSession(b.client, concurrency.WithTTL(b.ttlSeconds))
	if err != nil {
		return nil, xerrors.Wrap(err, "dlock: failed to create etcd session")
	}
	return &etcdMutex{
		session: session,
		mutex:   concurrency.NewMutex(session, key),
	}, nil
}

// close 客户端归连接器所有，这里没有要释放的资源
func (b *etcdBackend) close() error {
	return nil
}

func (m *etcdMutex) lock(ctx context.Context) (string, error) {
	if err := m.mutex.Lock(ctx); err != nil {
		return "", err
	}
	return m.mutex.Key(), nil
}

func (m *etcdMutex) unlock(ctx context.Context) error {
	return m.mutex.Unlock(ctx)
}

// release 关闭会话并吊销租约，后端侧残留的锁键随租约一并清除
func (m *etcdMutex) release() error {
	return m.session.Close()
}
