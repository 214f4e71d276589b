package connector

import (
	"context"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/metrics"
	"github.com/openobs/metakv/xerrors"
)

type etcdConnector struct {
	cfg     *EtcdConfig
	client  *clientv3.Client
	logger  clog.Logger
	meter   metrics.Meter
	healthy atomic.Bool
	mu      sync.RWMutex

	totalConnections      metrics.Counter
	successfulConnections metrics.Counter
	failedConnections     metrics.Counter
	activeConnections     metrics.Gauge
}

// NewEtcd 创建 Etcd 连接器
//
// 客户端在此处立即构建（clientv3 自身是懒连接的多路复用句柄），
// Connect(ctx) 用一次探测请求验证集群可达。
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, ErrConfig
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(ErrConfig, err.Error())
	}

	opt := &options{logger: clog.Discard()}
	for _, o := range opts {
		o(opt)
	}

	c := &etcdConnector{
		cfg:    cfg,
		logger: opt.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
		meter:  opt.meter,
	}

	if c.meter != nil {
		var err error
		c.totalConnections, err = c.meter.Counter(
			"connector_etcd_total_connections",
			"Total number of etcd connection attempts",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create total connections counter")
		}

		c.successfulConnections, err = c.meter.Counter(
			"connector_etcd_successful_connections",
			"Number of successful etcd connections",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create successful connections counter")
		}

		c.failedConnections, err = c.meter.Counter(
			"connector_etcd_failed_connections",
			"Number of failed etcd connections",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create failed connections counter")
		}

		c.activeConnections, err = c.meter.Gauge(
			"connector_etcd_active_connections",
			"Number of active etcd connections",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create active connections gauge")
		}
	}

	tlsConfig, err := cfg.tlsConfig()
	if err != nil {
		return nil, xerrors.Wrapf(err, "etcd connector[%s]: tls config", cfg.Name)
	}

	clientConfig := clientv3.Config{
		Endpoints:            cfg.Endpoints,
		DialTimeout:          cfg.DialTimeout,
		DialKeepAliveTime:    cfg.KeepAliveTime,
		DialKeepAliveTimeout: cfg.KeepAliveTimeout,
		TLS:                  tlsConfig,
	}
	if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := clientv3.New(clientConfig)
	if err != nil {
		return nil, xerrors.Wrapf(err, "etcd connector[%s]: connection failed", cfg.Name)
	}

	c.client = client
	return c, nil
}

// Connect 建立连接
func (c *etcdConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.totalConnections != nil {
		c.totalConnections.Inc(ctx, metrics.L("connector", c.cfg.Name))
	}

	c.logger.Info("attempting to connect to etcd", clog.Any("endpoints", c.cfg.Endpoints))

	testCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	if _, err := c.client.Get(testCtx, "health-check"); err != nil {
		if c.failedConnections != nil {
			c.failedConnections.Inc(ctx, metrics.L("connector", c.cfg.Name))
		}
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Wrapf(err, "etcd connector[%s]: connect failed", c.cfg.Name)
	}

	if c.successfulConnections != nil {
		c.successfulConnections.Inc(ctx, metrics.L("connector", c.cfg.Name))
	}
	if c.activeConnections != nil {
		c.activeConnections.Set(ctx, 1, metrics.L("connector", c.cfg.Name))
	}

	c.healthy.Store(true)
	c.logger.Info("successfully connected to etcd", clog.Any("endpoints", c.cfg.Endpoints))
	return nil
}

// Close 关闭连接
func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)

	if c.activeConnections != nil {
		c.activeConnections.Set(context.Background(), 0, metrics.L("connector", c.cfg.Name))
	}

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.logger.Error("failed to close etcd connection", clog.Error(err))
			return err
		}
		c.client = nil
		c.logger.Info("etcd connection closed")
	}
	return nil
}

// HealthCheck 检查连接健康状态
func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}

	testCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	if _, err := client.Get(testCtx, "health-check"); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Wrapf(err, "etcd connector[%s]: health check failed", c.cfg.Name)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 Etcd 客户端
func (c *etcdConnector) GetClient() *clientv3.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// IsUnavailableErr 判断错误是否属于网络层不可达（连接失败/超时）
func IsUnavailableErr(err error) bool {
	if err == nil {
		return false
	}
	if xerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}
