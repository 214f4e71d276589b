package metastore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/connector"
	"github.com/openobs/metakv/dlock"
	"github.com/openobs/metakv/metrics"
	"github.com/openobs/metakv/xerrors"
)

// kvOps 抽象后端的键值读写原语，便于不依赖真实集群测试存储逻辑；
// *clientv3.Client 天然满足该接口
type kvOps interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
}

// storeLocker 读改写操作用到的锁工厂；*dlock.Locker 满足该接口
type storeLocker interface {
	Lock(ctx context.Context, name string, timeout time.Duration) (*dlock.Lock, error)
	Close() error
}

type etcdStore struct {
	cfg    *Config
	client *clientv3.Client
	kv     kvOps
	locker storeLocker
	logger clog.Logger

	done      chan struct{}
	closeOnce sync.Once

	ops          metrics.Counter
	watchDropped metrics.Counter
}

// NewEtcd 创建基于 Etcd 的 Store
//
// 连接器应已完成 Connect。Store 只借用连接器，Close 不会关闭底层客户端。
func NewEtcd(conn connector.EtcdConnector, cfg *Config, opts ...Option) (Store, error) {
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

	dlockOpts := []dlock.Option{dlock.WithLogger(opt.logger)}
	if opt.meter != nil {
		dlockOpts = append(dlockOpts, dlock.WithMeter(opt.meter))
	}
	locker, err := dlock.NewEtcd(conn, &dlock.Config{
		Prefix:         cfg.Prefix,
		DefaultTimeout: cfg.LockWaitTimeout,
		CommandTimeout: cfg.CommandTimeout,
		SessionTTL:     cfg.SessionTTL,
	}, dlockOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "metastore: create locker")
	}

	s := &etcdStore{
		cfg:    cfg,
		client: client,
		kv:     client,
		locker: locker,
		logger: opt.logger,
		done:   make(chan struct{}),
	}

	if opt.meter != nil {
		s.ops, err = opt.meter.Counter(
			"metastore_ops_total",
			"Total number of metastore operations",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create ops counter")
		}
		s.watchDropped, err = opt.meter.Counter(
			"metastore_watch_dropped_total",
			"Number of watch events dropped because the subscriber channel was full",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create watch dropped counter")
		}
	}

	return s, nil
}

// opCtx 为单次后端命令派生带超时的上下文
func (s *etcdStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.CommandTimeout)
}

func (s *etcdStore) countOp(ctx context.Context, op string) {
	if s.ops != nil {
		s.ops.Inc(ctx, metrics.L("op", op))
	}
}

func (s *etcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.countOp(ctx, "get")
	_, value, err := s.getKeyValue(ctx, key)
	return value, err
}

// getKeyValue 读取键下最新的一条，返回剥离前缀后的完整键与值
//
// 带版本的条目存储为 "{key}/{start_dt}"，按键降序取第一条即最新版本；
// 无版本的裸键是它的特例。
func (s *etcdStore) getKeyValue(ctx context.Context, key string) (string, []byte, error) {
	fullKey := s.cfg.Prefix + key

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	resp, err := s.kv.Get(opCtx, fullKey,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortDescend),
		clientv3.WithLimit(1),
	)
	if err != nil {
		return "", nil, backendErr(err, "get", fullKey)
	}
	if len(resp.Kvs) == 0 {
		return "", nil, xerrors.Wrapf(ErrKeyNotExists, "key: %s", fullKey)
	}

	itemKey, ok := strings.CutPrefix(string(resp.Kvs[0].Key), s.cfg.Prefix)
	if !ok {
		return "", nil, xerrors.Wrapf(ErrMalformedResponse, "key %q outside prefix %q", resp.Kvs[0].Key, s.cfg.Prefix)
	}
	return itemKey, resp.Kvs[0].Value, nil
}

func (s *etcdStore) Put(ctx context.Context, key string, value []byte, startDt int64) error {
	s.countOp(ctx, "put")
	fullKey := s.cfg.Prefix + key
	if startDt > 0 {
		fullKey = fmt.Sprintf("%s/%d", fullKey, startDt)
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.kv.Put(opCtx, fullKey, string(value)); err != nil {
		return backendErr(err, "put", fullKey)
	}
	return nil
}

func (s *etcdStore) Delete(ctx context.Context, key string, withPrefix bool, startDt int64) error {
	s.countOp(ctx, "delete")
	fullKey := s.cfg.Prefix + key
	if startDt > 0 {
		fullKey = fmt.Sprintf("%s/%d", fullKey, startDt)
	}

	var opts []clientv3.OpOption
	if withPrefix {
		opts = append(opts, clientv3.WithPrefix())
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.kv.Delete(opCtx, fullKey, opts...); err != nil {
		return backendErr(err, "delete", fullKey)
	}
	return nil
}

func (s *etcdStore) GetForUpdate(ctx context.Context, key string, startDt int64, fn UpdateFunc) error {
	s.countOp(ctx, "get_for_update")

	lockName := fmt.Sprintf("/meta%s/%d", key, startDt)
	lk, err := s.locker.Lock(ctx, lockName, s.cfg.LockWaitTimeout)
	if err != nil {
		return xerrors.Wrapf(err, "metastore: lock %s", lockName)
	}
	// 释放不随调用方取消而失效：锁一旦拿到，任何退出路径都要还回去
	defer lk.Unlock(context.WithoutCancel(ctx))

	s.logger.DebugContext(ctx, "acquired lock for cluster key", clog.String("lock", lockName))

	found := true
	oldKey, oldValue, err := s.getKeyValue(ctx, key)
	if err != nil {
		if !xerrors.Is(err, ErrKeyNotExists) {
			return err
		}
		found = false
		oldValue = nil
	}

	result, err := fn(oldValue, found)
	if err != nil {
		return xerrors.Wrapf(xerrors.Join(ErrUpdateRejected, err), "key: %s", key)
	}
	if result == nil {
		return nil
	}

	if result.Value != nil {
		// 覆写时沿用读到的完整键（含版本后缀），不存在则落在裸键上
		target := key
		if found {
			target = oldKey
		}
		if err := s.Put(ctx, target, result.Value, 0); err != nil {
			return err
		}
	}
	if result.NewEntry != nil {
		if err := s.Put(ctx, result.NewEntry.Key, result.NewEntry.Value, result.NewEntry.StartDt); err != nil {
			return err
		}
	}
	return nil
}

func (s *etcdStore) Count(ctx context.Context, prefix string) (int64, error) {
	s.countOp(ctx, "count")
	fullPrefix := s.cfg.Prefix + prefix

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	resp, err := s.kv.Get(opCtx, fullPrefix, clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return 0, backendErr(err, "count", fullPrefix)
	}
	return resp.Count, nil
}

func (s *etcdStore) Stats(ctx context.Context) (Stats, error) {
	s.countOp(ctx, "stats")

	endpoints := s.client.Endpoints()
	if len(endpoints) == 0 {
		return Stats{}, xerrors.Wrap(ErrMalformedResponse, "client has no endpoints")
	}

	statusCtx, cancel := s.opCtx(ctx)
	defer cancel()

	status, err := s.client.Status(statusCtx, endpoints[0])
	if err != nil {
		return Stats{}, backendErr(err, "status", endpoints[0])
	}

	countCtx, cancel2 := s.opCtx(ctx)
	defer cancel2()

	// 空键加前缀选项即整个键空间，键计数覆盖全部键而不止本存储前缀
	resp, err := s.kv.Get(countCtx, "", clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return Stats{}, backendErr(err, "count", "(all)")
	}

	return Stats{
		BytesLen:  status.DbSize,
		KeysCount: resp.Count,
	}, nil
}

// CreateTable 为与其他后端保持接口一致的空操作
func (s *etcdStore) CreateTable(ctx context.Context) error {
	return nil
}

// AddStartDtColumn 为与其他后端保持接口一致的空操作
func (s *etcdStore) AddStartDtColumn(ctx context.Context) error {
	return nil
}

// Close 关闭存储
//
// 终止全部订阅循环并释放锁会话；底层客户端归连接器所有，不在此关闭。
func (s *etcdStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.locker.Close()
	})
	return err
}
