package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewEtcd_NilConfig(t *testing.T) {
	_, err := NewEtcd(nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewEtcd_EmptyEndpoints(t *testing.T) {
	_, err := NewEtcd(&EtcdConfig{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestEtcdConfig_Defaults(t *testing.T) {
	cfg := &EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}}
	require.NoError(t, cfg.validate())

	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 10*time.Second, cfg.KeepAliveTime)
	assert.Equal(t, 3*time.Second, cfg.KeepAliveTimeout)
}

func TestEtcdConfig_CertAuthRequiresFiles(t *testing.T) {
	cfg := &EtcdConfig{
		Endpoints: []string{"127.0.0.1:2379"},
		CertAuth:  true,
	}
	assert.Error(t, cfg.validate())
}

func TestEtcdConfig_TLSDisabled(t *testing.T) {
	cfg := &EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}}
	tlsCfg, err := cfg.tlsConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}

func TestEtcdConfig_TLSBadCAFile(t *testing.T) {
	dir := t.TempDir()
	caPath := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(caPath, []byte("not a certificate"), 0o600))

	cfg := &EtcdConfig{
		Endpoints: []string{"127.0.0.1:2379"},
		CertAuth:  true,
		CAFile:    caPath,
		CertFile:  filepath.Join(dir, "missing-cert.pem"),
		KeyFile:   filepath.Join(dir, "missing-key.pem"),
	}
	_, err := cfg.tlsConfig()
	assert.Error(t, err)
}

func TestNewNATS_NilConfig(t *testing.T) {
	_, err := NewNATS(nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewNATS_EmptyURL(t *testing.T) {
	_, err := NewNATS(&NATSConfig{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNATSConfig_Defaults(t *testing.T) {
	cfg := &NATSConfig{URL: "nats://127.0.0.1:4222"}
	require.NoError(t, cfg.validate())

	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Second, cfg.ReconnectWait)
	assert.Equal(t, 60, cfg.MaxReconnects)
	assert.Equal(t, 2*time.Minute, cfg.PingInterval)
}

func TestIsUnavailableErr(t *testing.T) {
	assert.False(t, IsUnavailableErr(nil))
	assert.True(t, IsUnavailableErr(context.DeadlineExceeded))
	assert.True(t, IsUnavailableErr(status.Error(codes.Unavailable, "connection refused")))
	assert.True(t, IsUnavailableErr(status.Error(codes.DeadlineExceeded, "timeout")))
	assert.False(t, IsUnavailableErr(status.Error(codes.PermissionDenied, "denied")))
}
