package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/metrics"
	"github.com/openobs/metakv/xerrors"
)

type natsConnector struct {
	cfg     *NATSConfig
	conn    *nats.Conn
	logger  clog.Logger
	meter   metrics.Meter
	healthy atomic.Bool
	mu      sync.RWMutex

	totalConnections      metrics.Counter
	successfulConnections metrics.Counter
	failedConnections     metrics.Counter
	activeConnections     metrics.Gauge
}

// NewNATS 创建 NATS 连接器
//
// 与 Etcd 连接器不同，nats.Conn 必须在 Connect(ctx) 时才真正建立。
func NewNATS(cfg *NATSConfig, opts ...Option) (NATSConnector, error) {
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

	c := &natsConnector{
		cfg:    cfg,
		logger: opt.logger.With(clog.String("connector", "nats"), clog.String("name", cfg.Name)),
		meter:  opt.meter,
	}

	if c.meter != nil {
		var err error
		c.totalConnections, err = c.meter.Counter(
			"connector_nats_total_connections",
			"Total number of NATS connection attempts",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create total connections counter")
		}

		c.successfulConnections, err = c.meter.Counter(
			"connector_nats_successful_connections",
			"Number of successful NATS connections",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create successful connections counter")
		}

		c.failedConnections, err = c.meter.Counter(
			"connector_nats_failed_connections",
			"Number of failed NATS connections",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create failed connections counter")
		}

		c.activeConnections, err = c.meter.Gauge(
			"connector_nats_active_connections",
			"Number of active NATS connections",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create active connections gauge")
		}
	}

	return c, nil
}

// Connect 建立连接
func (c *natsConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	if c.totalConnections != nil {
		c.totalConnections.Inc(ctx, metrics.L("connector", c.cfg.Name))
	}

	c.logger.Info("attempting to connect to nats", clog.String("url", c.cfg.URL))

	natsOpts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.Timeout(c.cfg.Timeout),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.PingInterval(c.cfg.PingInterval),
	}
	if c.cfg.Username != "" && c.cfg.Password != "" {
		natsOpts = append(natsOpts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
	}
	if c.cfg.Token != "" {
		natsOpts = append(natsOpts, nats.Token(c.cfg.Token))
	}

	conn, err := nats.Connect(c.cfg.URL, natsOpts...)
	if err != nil {
		if c.failedConnections != nil {
			c.failedConnections.Inc(ctx, metrics.L("connector", c.cfg.Name))
		}
		c.logger.Error("failed to connect to nats", clog.Error(err), clog.String("url", c.cfg.URL))
		return xerrors.Wrapf(err, "nats connector[%s]: connect failed", c.cfg.Name)
	}

	c.conn = conn

	if c.successfulConnections != nil {
		c.successfulConnections.Inc(ctx, metrics.L("connector", c.cfg.Name))
	}
	if c.activeConnections != nil {
		c.activeConnections.Set(ctx, 1, metrics.L("connector", c.cfg.Name))
	}

	c.healthy.Store(true)
	c.logger.Info("successfully connected to nats", clog.String("url", c.cfg.URL))
	return nil
}

// Close 关闭连接
func (c *natsConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)

	if c.activeConnections != nil {
		c.activeConnections.Set(context.Background(), 0, metrics.L("connector", c.cfg.Name))
	}

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.logger.Info("nats connection closed")
	}
	return nil
}

// HealthCheck 检查连接健康状态
func (c *natsConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	if status := conn.Status(); status != nats.CONNECTED {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrHealthCheck, "nats connector[%s]: status %s", c.cfg.Name, status)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *natsConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *natsConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 NATS 连接
func (c *natsConnector) GetClient() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}
