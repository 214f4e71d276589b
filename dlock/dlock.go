// Package dlock 为 metakv 提供集群级分布式互斥锁。
//
// 锁由协调后端（etcd）原生的互斥原语保证全局唯一持有者；本包在其上提供：
//   - 有界重试的加锁：总等待时间被拆分为若干次单命令超时的尝试，
//     只有"尝试超时"这一类失败会触发重试，其他错误立即中止
//   - 类型化的三态生命周期（init → locked → released），
//     状态迁移只能经由 Lock/Unlock 发生
//   - 宽松释放（fail-open）：释放调用失败只记录日志，本地状态照常进入
//     released，避免释放路径的网络错误把调用方卡死；后端侧残留的锁
//     由会话 TTL 兜底回收
//
// 基本使用：
//
//	locker, _ := dlock.NewEtcd(etcdConn, &dlock.Config{
//	    Prefix: "/metakv/cluster",
//	}, dlock.WithLogger(logger))
//	defer locker.Close()
//
//	lock, err := locker.Lock(ctx, "/meta/schema/default", 0) // 0 表示使用默认等待超时
//	if err != nil {
//	    return err
//	}
//	defer lock.Unlock(ctx)
package dlock

import (
	"context"
	"sync"
	"time"

	"github.com/flowchartsman/retry"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/metrics"
	"github.com/openobs/metakv/xerrors"
)

// lockState 锁实例的生命周期状态
//
// 状态只会单向前进：init → locked → released。
// 只有成功加锁的那次 Lock 调用会进入 locked；Unlock 在任何状态下
// 都可以安全调用，非 locked 状态下是空操作。
type lockState int

const (
	stateInit lockState = iota
	stateLocked
	stateReleased
)

// Locker 锁工厂，每次加锁在后端创建独立的锁句柄
//
// 并发安全；同一个 Locker 可以同时创建多把互不相关的锁。
type Locker struct {
	backend backend
	cfg     *Config
	logger  clog.Logger

	acquired  metrics.Counter
	timeouts  metrics.Counter
	relFailed metrics.Counter
}

// Lock 一次成功加锁的持有凭据
//
// 非并发安全的部分（状态迁移）由内部互斥量保护，Unlock 可从任意
// goroutine 调用。
type Lock struct {
	name  string
	key   string
	token string

	mu     sync.Mutex
	state  lockState
	mutex  backendMutex
	logger clog.Logger

	relFailed metrics.Counter
}

// newLocker 组装 Locker（内部使用，由各后端构造函数调用）
func newLocker(b backend, cfg *Config, opt *options) (*Locker, error) {
	l := &Locker{
		backend: b,
		cfg:     cfg,
		logger:  opt.logger,
	}

	if opt.meter != nil {
		var err error
		l.acquired, err = opt.meter.Counter(
			"dlock_acquired_total",
			"Number of successful lock acquisitions",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create acquired counter")
		}
		l.timeouts, err = opt.meter.Counter(
			"dlock_timeouts_total",
			"Number of lock acquisitions that exhausted all attempts",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create timeouts counter")
		}
		l.relFailed, err = opt.meter.Counter(
			"dlock_release_failures_total",
			"Number of lock releases swallowed by the fail-open path",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create release failures counter")
		}
	}

	return l, nil
}

// Lock 在给定名字上加集群级互斥锁
//
// timeout 为总等待时间，0 表示使用配置的默认值。总等待时间被拆分为
// max(1, timeout/CommandTimeout) 次尝试，每次尝试带独立的命令超时。
// 尝试超时会重试，其余错误立即返回 ErrLockAcquireFailure；
// 所有尝试耗尽返回 ErrLockTimeout。
//
// 名字会被置于 "{Prefix}locker" 命名空间下，与数据键天然隔离。
func (l *Locker) Lock(ctx context.Context, name string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		timeout = l.cfg.DefaultTimeout
	}
	attempts := int(timeout / l.cfg.CommandTimeout)
	if attempts < 1 {
		attempts = 1
	}

	key := l.cfg.Prefix + "locker" + name
	mutex, err := l.backend.newMutex(ctx, key)
	if err != nil {
		return nil, xerrors.Wrapf(xerrors.Join(ErrLockAcquireFailure, err), "key: %s", key)
	}

	var token string
	retrier := retry.NewRetrier(attempts, 0, 0)
	err = retrier.RunContext(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, l.cfg.CommandTimeout)
		defer cancel()

		tok, err := mutex.lock(attemptCtx)
		if err != nil {
			if isAttemptTimeout(err) {
				return err
			}
			// 非超时错误不重试
			return retry.Stop(err)
		}
		token = tok
		return nil
	})
	if err != nil {
		if rerr := mutex.release(); rerr != nil {
			l.logger.WarnContext(ctx, "release after failed acquisition",
				clog.String("key", key), clog.Error(rerr))
		}
		if isAttemptTimeout(err) {
			if l.timeouts != nil {
				l.timeouts.Inc(ctx, metrics.L("lock", name))
			}
			return nil, xerrors.Wrapf(ErrLockTimeout, "key: %s, attempts: %d", key, attempts)
		}
		return nil, xerrors.Wrapf(xerrors.Join(ErrLockAcquireFailure, err), "key: %s", key)
	}

	if l.acquired != nil {
		l.acquired.Inc(ctx, metrics.L("lock", name))
	}
	l.logger.DebugContext(ctx, "lock acquired", clog.String("key", key), clog.String("token", token))

	return &Lock{
		name:      name,
		key:       key,
		token:     token,
		state:     stateLocked,
		mutex:     mutex,
		logger:    l.logger,
		relFailed: l.relFailed,
	}, nil
}

// Close 关闭 Locker，释放底层会话
func (l *Locker) Close() error {
	return l.backend.close()
}

// Unlock 释放锁
//
// 非 locked 状态下是空操作。释放调用失败只记录日志（fail-open），
// 本地状态一律迁移到 released；后端侧可能残留的锁由会话 TTL 回收。
func (lk *Lock) Unlock(ctx context.Context) {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.state != stateLocked {
		return
	}
	lk.state = stateReleased

	if err := lk.mutex.unlock(ctx); err != nil {
		if lk.relFailed != nil {
			lk.relFailed.Inc(ctx, metrics.L("lock", lk.name))
		}
		lk.logger.ErrorContext(ctx, "lock release failed",
			clog.String("key", lk.key), clog.Error(err))
	} else {
		lk.logger.DebugContext(ctx, "lock released", clog.String("key", lk.key))
	}

	// 吊销会话租约，后端侧残留的锁键随租约清除
	if err := lk.mutex.release(); err != nil {
		lk.logger.WarnContext(ctx, "lock session release failed",
			clog.String("key", lk.key), clog.Error(err))
	}
}

// Key 返回锁在后端的完整键名
func (lk *Lock) Key() string {
	return lk.key
}

// Token 返回后端颁发的持有凭据
func (lk *Lock) Token() string {
	return lk.token
}
