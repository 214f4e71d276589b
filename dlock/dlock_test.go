package dlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/xerrors"
)

// ============================================================================
// 测试用的假后端
// ============================================================================

// fakeBackend 在内存中模拟协调后端的互斥原语
type fakeBackend struct {
	mu sync.Mutex
	// lockErrs 每次加锁尝试按序弹出的错误，nil 表示成功
	lockErrs []error
	// unlockErr 释放时返回的错误
	unlockErr error
	// attempts 实际发生的加锁尝试数
	attempts int
	// released 互斥体资源被归还的次数
	released int
	closed   bool
}

func (b *fakeBackend) newMutex(ctx context.Context, key string) (backendMutex, error) {
	return &fakeMutex{backend: b, key: key}, nil
}

func (b *fakeBackend) close() error {
	b.closed = true
	return nil
}

type fakeMutex struct {
	backend *fakeBackend
	key     string
}

func (m *fakeMutex) lock(ctx context.Context) (string, error) {
	b := m.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	if len(b.lockErrs) > 0 {
		err := b.lockErrs[0]
		b.lockErrs = b.lockErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return m.key + "/6f7276657276", nil
}

func (m *fakeMutex) unlock(ctx context.Context) error {
	return m.backend.unlockErr
}

func (m *fakeMutex) release() error {
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()
	m.backend.released++
	return nil
}

func newTestLocker(t *testing.T, b backend, cfg *Config) *Locker {
	t.Helper()
	if cfg == nil {
		cfg = &Config{Prefix: "/test/cluster"}
	}
	require.NoError(t, cfg.validate())

	locker, err := newLocker(b, cfg, &options{logger: clog.Discard()})
	require.NoError(t, err)
	return locker
}

// ============================================================================
// 加锁
// ============================================================================

func TestLock_Success(t *testing.T) {
	backend := &fakeBackend{}
	locker := newTestLocker(t, backend, nil)

	lock, err := locker.Lock(context.Background(), "/meta/schema/1", 0)
	require.NoError(t, err)

	assert.Equal(t, "/test/clusterlocker/meta/schema/1", lock.Key())
	assert.NotEmpty(t, lock.Token())
	assert.Equal(t, 1, backend.attempts)
}

func TestLock_RetriesOnAttemptTimeout(t *testing.T) {
	backend := &fakeBackend{
		lockErrs: []error{context.DeadlineExceeded, context.DeadlineExceeded, nil},
	}
	cfg := &Config{
		Prefix:         "/test/cluster",
		DefaultTimeout: 50 * time.Millisecond,
		CommandTimeout: 10 * time.Millisecond,
	}
	locker := newTestLocker(t, backend, cfg)

	lock, err := locker.Lock(context.Background(), "/counter", 0)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, 3, backend.attempts)
}

func TestLock_TimeoutAfterBoundedAttempts(t *testing.T) {
	backend := &fakeBackend{
		lockErrs: []error{
			context.DeadlineExceeded, context.DeadlineExceeded, context.DeadlineExceeded,
			context.DeadlineExceeded, context.DeadlineExceeded, context.DeadlineExceeded,
		},
	}
	cfg := &Config{
		Prefix:         "/test/cluster",
		DefaultTimeout: 30 * time.Millisecond,
		CommandTimeout: 10 * time.Millisecond,
	}
	locker := newTestLocker(t, backend, cfg)

	_, err := locker.Lock(context.Background(), "/counter", 0)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrLockTimeout))
	// timeout/commandTimeout = 3 次尝试，不能多也不能少
	assert.Equal(t, 3, backend.attempts)
	// 获取失败后互斥体资源被归还
	assert.Equal(t, 1, backend.released)
}

func TestLock_ZeroTimeoutUsesDefault(t *testing.T) {
	backend := &fakeBackend{
		lockErrs: []error{context.DeadlineExceeded, context.DeadlineExceeded},
	}
	cfg := &Config{
		Prefix:         "/test/cluster",
		DefaultTimeout: 20 * time.Millisecond,
		CommandTimeout: 10 * time.Millisecond,
	}
	locker := newTestLocker(t, backend, cfg)

	_, err := locker.Lock(context.Background(), "/cfg", 0)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrLockTimeout))
	assert.Equal(t, 2, backend.attempts)
}

func TestLock_NonTimeoutErrorAbortsImmediately(t *testing.T) {
	hardErr := xerrors.New("etcdserver: permission denied")
	backend := &fakeBackend{
		lockErrs: []error{hardErr, nil, nil},
	}
	cfg := &Config{
		Prefix:         "/test/cluster",
		DefaultTimeout: 100 * time.Millisecond,
		CommandTimeout: 10 * time.Millisecond,
	}
	locker := newTestLocker(t, backend, cfg)

	_, err := locker.Lock(context.Background(), "/cfg", 0)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrLockAcquireFailure))
	assert.True(t, xerrors.Is(err, hardErr))
	assert.Equal(t, 1, backend.attempts)
}

func TestLock_ShortTimeoutStillGetsOneAttempt(t *testing.T) {
	backend := &fakeBackend{}
	cfg := &Config{
		Prefix:         "/test/cluster",
		DefaultTimeout: time.Millisecond,
		CommandTimeout: 10 * time.Millisecond,
	}
	locker := newTestLocker(t, backend, cfg)

	_, err := locker.Lock(context.Background(), "/cfg", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.attempts)
}

// ============================================================================
// 释放
// ============================================================================

func TestUnlock_Idempotent(t *testing.T) {
	backend := &fakeBackend{}
	locker := newTestLocker(t, backend, nil)

	lock, err := locker.Lock(context.Background(), "/cfg", 0)
	require.NoError(t, err)

	lock.Unlock(context.Background())
	assert.Equal(t, stateReleased, lock.state)
	assert.Equal(t, 1, backend.released)

	// 二次释放是空操作
	lock.Unlock(context.Background())
	assert.Equal(t, stateReleased, lock.state)
	assert.Equal(t, 1, backend.released)
}

func TestUnlock_FailOpenOnBackendError(t *testing.T) {
	backend := &fakeBackend{unlockErr: xerrors.New("network partition")}
	locker := newTestLocker(t, backend, nil)

	lock, err := locker.Lock(context.Background(), "/cfg", 0)
	require.NoError(t, err)

	// 释放失败不向外传播，本地状态照常进入 released
	lock.Unlock(context.Background())
	assert.Equal(t, stateReleased, lock.state)
}

func TestLocker_Close(t *testing.T) {
	backend := &fakeBackend{}
	locker := newTestLocker(t, backend, nil)

	require.NoError(t, locker.Close())
	assert.True(t, backend.closed)
}

// ============================================================================
// 工厂
// ============================================================================

func TestNewEtcd_NilArgs(t *testing.T) {
	_, err := NewEtcd(nil, &Config{})
	assert.ErrorIs(t, err, ErrConnectorNil)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.validate())

	assert.Equal(t, 60*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 30*time.Second, cfg.SessionTTL)
}
