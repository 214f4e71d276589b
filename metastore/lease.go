package metastore

import (
	"context"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/connector"
	"github.com/openobs/metakv/xerrors"
)

// sessionKeepAliveInterval 会话保活键的探测周期
const sessionKeepAliveInterval = 60 * time.Second

// leaseKeeper 抽象单次续约调用，便于不依赖真实集群测试续约节奏
type leaseKeeper interface {
	keepAliveOnce(ctx context.Context, id clientv3.LeaseID) (ttl int64, err error)
}

type clientLeaseKeeper struct {
	lease clientv3.Lease
}

func (k clientLeaseKeeper) keepAliveOnce(ctx context.Context, id clientv3.LeaseID) (int64, error) {
	resp, err := k.lease.KeepAliveOnce(ctx, id)
	if err != nil {
		return 0, err
	}
	return resp.TTL, nil
}

// KeepAliveLease 持续为给定租约续约，直到 stop 返回 true
//
// 续约节奏：初始间隔 min(5, ttl/2) 秒；单次续约失败时收紧到 1 秒尽快
// 重试；续约成功后放宽到 min(10, ttl/2) 秒。租约已过期（响应 TTL 为 0
// 或后端报告租约不存在）是不可恢复的，返回 ErrLeaseExpired。
// 只有 stop 观测为 true 时返回 nil。
func KeepAliveLease(ctx context.Context, conn connector.EtcdConnector, leaseID clientv3.LeaseID, ttl int64, stop func() bool, opts ...Option) error {
	if conn == nil {
		return ErrConnectorNil
	}
	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}

	client := conn.GetClient()
	if client == nil {
		return ErrConnectorNil
	}

	return runLeaseKeepAlive(ctx, clientLeaseKeeper{lease: client}, leaseID, ttl, stop, opt.logger, sleepCtx)
}

func runLeaseKeepAlive(ctx context.Context, keeper leaseKeeper, leaseID clientv3.LeaseID, ttl int64, stop func() bool, logger clog.Logger, sleep func(ctx context.Context, d time.Duration) bool) error {
	interval := keepAliveInterval(5, ttl)
	for {
		if stop() {
			return nil
		}
		if !sleep(ctx, interval) {
			return ctx.Err()
		}

		respTTL, err := keeper.keepAliveOnce(ctx, leaseID)
		if err != nil {
			if xerrors.Is(err, rpctypes.ErrLeaseNotFound) {
				logger.ErrorContext(ctx, "lease expired or revoked",
					clog.Int64("lease_id", int64(leaseID)), clog.Error(err))
				return xerrors.Wrapf(xerrors.Join(ErrLeaseExpired, err), "lease: %d", leaseID)
			}
			logger.ErrorContext(ctx, "lease keep alive error",
				clog.Int64("lease_id", int64(leaseID)), clog.Error(err))
			interval = time.Second
			continue
		}
		if respTTL == 0 {
			logger.ErrorContext(ctx, "lease keep alive ttl is 0",
				clog.Int64("lease_id", int64(leaseID)))
			return xerrors.Wrapf(ErrLeaseExpired, "lease: %d", leaseID)
		}
		interval = keepAliveInterval(10, ttl)
	}
}

// keepAliveInterval 续约间隔为 min(cap, ttl/2) 秒，至少 1 秒
func keepAliveInterval(capSeconds, ttl int64) time.Duration {
	seconds := ttl / 2
	if seconds > capSeconds {
		seconds = capSeconds
	}
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

// sleepCtx 等待给定时长，上下文取消时提前返回 false
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// KeepAliveSession 周期性读写 "{prefix}healthz" 键，维持后端认证会话
//
// 写入或探测失败只记录日志，下个周期重试，不向调用方传播；
// 只在 ctx 取消时返回 nil。本地模式或非 etcd 协调后端的部署不应启动
// 此任务，由调用方决定。
func KeepAliveSession(ctx context.Context, conn connector.EtcdConnector, cfg *Config, opts ...Option) error {
	if conn == nil {
		return ErrConnectorNil
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}

	client := conn.GetClient()
	if client == nil {
		return ErrConnectorNil
	}

	return runSessionKeepAlive(ctx, client, cfg.Prefix+"healthz", cfg.CommandTimeout, opt.logger, sleepCtx)
}

func runSessionKeepAlive(ctx context.Context, kv kvOps, key string, cmdTimeout time.Duration, logger clog.Logger, sleep func(ctx context.Context, d time.Duration) bool) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		putCtx, cancel := context.WithTimeout(ctx, cmdTimeout)
		_, err := kv.Put(putCtx, key, "OK")
		cancel()
		if err != nil {
			logger.ErrorContext(ctx, "session keep alive put error",
				clog.String("key", key), clog.Error(err))
			if !sleep(ctx, sessionKeepAliveInterval) {
				return nil
			}
			continue
		}

		for {
			if !sleep(ctx, sessionKeepAliveInterval) {
				return nil
			}
			getCtx, cancel := context.WithTimeout(ctx, cmdTimeout)
			_, err := kv.Get(getCtx, key)
			cancel()
			if err != nil {
				// 探测失败重建探测链：从重新写入开始
				logger.ErrorContext(ctx, "session keep alive error",
					clog.String("key", key), clog.Error(err))
				break
			}
		}
	}
}
