package metastore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobs/metakv/testkit"
	"github.com/openobs/metakv/xerrors"
)

// ============================================================================
// Helper Functions
// ============================================================================

func newEtcdStore(t *testing.T) Store {
	t.Helper()

	conn := testkit.GetEtcdConnector(t)
	store, err := NewEtcd(conn, &Config{
		Prefix:          "/metakv-test/" + testkit.NewID(),
		CommandTimeout:  3 * time.Second,
		LockWaitTimeout: 10 * time.Second,
		LoadPageSize:    10,
	}, WithLogger(testkit.NewLogger()))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Delete(ctx, "", true, 0)
		_ = store.Close()
	})
	return store
}

// ============================================================================
// Integration Tests
// ============================================================================

func TestIntegration_PutGetDelete(t *testing.T) {
	store := newEtcdStore(t)
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	require.NoError(t, store.Put(ctx, "/nodes/n1", []byte("payload"), 0))

	value, err := store.Get(ctx, "/nodes/n1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), value)

	require.NoError(t, store.Delete(ctx, "/nodes/n1", false, 0))

	_, err = store.Get(ctx, "/nodes/n1")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrKeyNotExists))
}

func TestIntegration_GetReturnsLatestVersion(t *testing.T) {
	store := newEtcdStore(t)
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	require.NoError(t, store.Put(ctx, "/schema/logs", []byte("v1"), 1700000000100))
	require.NoError(t, store.Put(ctx, "/schema/logs", []byte("v2"), 1700000000200))

	value, err := store.Get(ctx, "/schema/logs")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
}

func TestIntegration_ListAndCount(t *testing.T) {
	store := newEtcdStore(t)
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	// 超过单页大小，迫使列举走分页路径
	total := 25
	for i := 0; i < total; i++ {
		key := fmt.Sprintf("/cfg/item-%03d", i)
		require.NoError(t, store.Put(ctx, key, []byte(strconv.Itoa(i)), 0))
	}
	require.NoError(t, store.Put(ctx, "/other/x", []byte("noise"), 0))

	entries, err := store.List(ctx, "/cfg/")
	require.NoError(t, err)
	assert.Len(t, entries, total)
	assert.Equal(t, []byte("7"), entries["/cfg/item-007"])

	keys, err := store.ListKeys(ctx, "/cfg/")
	require.NoError(t, err)
	assert.Len(t, keys, total)
	assert.Contains(t, keys, "/cfg/item-000")

	values, err := store.ListValues(ctx, "/cfg/")
	require.NoError(t, err)
	assert.Len(t, values, total)

	count, err := store.Count(ctx, "/cfg/")
	require.NoError(t, err)
	assert.Equal(t, int64(total), count)

	empty, err := store.List(ctx, "/nothing-here/")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestIntegration_ListValuesByStartDt(t *testing.T) {
	store := newEtcdStore(t)
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	require.NoError(t, store.Put(ctx, "/schema/logs", []byte("a"), 1700000000100))
	require.NoError(t, store.Put(ctx, "/schema/logs", []byte("b"), 1700000000200))
	require.NoError(t, store.Put(ctx, "/schema/logs", []byte("c"), 1700000000300))

	values, err := store.ListValuesByStartDt(ctx, "/schema/", 1700000000150, 1700000000250)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, int64(1700000000200), values[0].StartDt)
	assert.Equal(t, []byte("b"), values[0].Value)

	all, err := store.ListValuesByStartDt(ctx, "/schema/", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIntegration_ConcurrentGetForUpdate(t *testing.T) {
	store := newEtcdStore(t)
	ctx, cancel := testkit.NewContext(t, 120*time.Second)
	defer cancel()

	require.NoError(t, store.Put(ctx, "/counter", []byte("0"), 0))

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.GetForUpdate(ctx, "/counter", 0, func(old []byte, found bool) (*UpdateResult, error) {
				if !found {
					return nil, xerrors.New("counter disappeared")
				}
				n, err := strconv.Atoi(string(old))
				if err != nil {
					return nil, err
				}
				return &UpdateResult{Value: []byte(strconv.Itoa(n + 1))}, nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("get_for_update failed: %v", err)
	}

	value, err := store.Get(ctx, "/counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers), string(value))
}

func TestIntegration_Watch(t *testing.T) {
	store := newEtcdStore(t)
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	ch, err := store.Watch(ctx, "/watch/")
	require.NoError(t, err)

	// 订阅从当前时刻开始，等流建立后再写
	time.Sleep(500 * time.Millisecond)

	require.NoError(t, store.Put(ctx, "/watch/a", []byte("v"), 0))
	require.NoError(t, store.Delete(ctx, "/watch/a", false, 0))

	ev := waitEvent(t, ch)
	assert.Equal(t, EventPut, ev.Type)
	assert.Equal(t, "/watch/a", ev.Key)
	assert.Equal(t, []byte("v"), ev.Value)

	ev = waitEvent(t, ch)
	assert.Equal(t, EventDelete, ev.Type)
	assert.Equal(t, "/watch/a", ev.Key)
	assert.Nil(t, ev.Value)
}

func TestIntegration_WatchClosedOnStoreClose(t *testing.T) {
	store := newEtcdStore(t)
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	ch, err := store.Watch(ctx, "/watch-close/")
	require.NoError(t, err)
	time.Sleep(500 * time.Millisecond)

	require.NoError(t, store.Close())

	select {
	case _, open := <-ch:
		assert.False(t, open, "watch channel must be closed after store close")
	case <-time.After(5 * time.Second):
		t.Fatal("watch channel not closed after store close")
	}
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed unexpectedly")
		}
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
	return Event{}
}

func TestIntegration_Stats(t *testing.T) {
	store := newEtcdStore(t)
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	require.NoError(t, store.Put(ctx, "/nodes/n1", []byte("x"), 0))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Positive(t, stats.BytesLen)
	assert.Positive(t, stats.KeysCount)
}

func TestIntegration_KeepAliveLease(t *testing.T) {
	conn := testkit.GetEtcdConnector(t)
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	lease, err := conn.GetClient().Grant(ctx, 3)
	require.NoError(t, err)

	// 续约间隔 min(5, 3/2) = 1s；跑几轮后主动停下，租约应始终存活
	deadline := time.Now().Add(4 * time.Second)
	err = KeepAliveLease(ctx, conn, lease.ID, 3, func() bool {
		return time.Now().After(deadline)
	}, WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	ttl, err := conn.GetClient().TimeToLive(ctx, lease.ID)
	require.NoError(t, err)
	assert.Positive(t, ttl.TTL, "lease must still be alive after keep-alive rounds")
}
