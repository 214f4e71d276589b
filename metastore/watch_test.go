package metastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func putEvent(key, value string) *clientv3.Event {
	return &clientv3.Event{
		Type: mvccpb.PUT,
		Kv:   &mvccpb.KeyValue{Key: []byte(key), Value: []byte(value)},
	}
}

func deleteEvent(key string) *clientv3.Event {
	return &clientv3.Event{
		Type: mvccpb.DELETE,
		Kv:   &mvccpb.KeyValue{Key: []byte(key)},
	}
}

func TestDispatchEvent_PutAndDelete(t *testing.T) {
	store := newTestStore(t, &fakeKV{}, nil)
	ch := make(chan Event, 4)
	ctx := context.Background()

	store.dispatchEvent(ctx, "/nodes/", putEvent("/mk/nodes/n1", "payload"), ch)
	store.dispatchEvent(ctx, "/nodes/", deleteEvent("/mk/nodes/n1"), ch)

	ev := <-ch
	assert.Equal(t, EventPut, ev.Type)
	assert.Equal(t, "/nodes/n1", ev.Key, "event key must be relative to the store prefix")
	assert.Equal(t, []byte("payload"), ev.Value)

	ev = <-ch
	assert.Equal(t, EventDelete, ev.Type)
	assert.Equal(t, "/nodes/n1", ev.Key)
	assert.Nil(t, ev.Value)
}

func TestDispatchEvent_DropsWhenChannelFull(t *testing.T) {
	store := newTestStore(t, &fakeKV{}, nil)
	ch := make(chan Event, 1)
	ctx := context.Background()

	store.dispatchEvent(ctx, "/nodes/", putEvent("/mk/nodes/n1", "a"), ch)
	// 通道已满：事件被丢弃而不是阻塞
	store.dispatchEvent(ctx, "/nodes/", putEvent("/mk/nodes/n2", "b"), ch)

	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, "/nodes/n1", ev.Key)
}

func TestDispatchEvent_IgnoresForeignPrefix(t *testing.T) {
	store := newTestStore(t, &fakeKV{}, nil)
	ch := make(chan Event, 4)

	store.dispatchEvent(context.Background(), "/nodes/", putEvent("/other/nodes/n1", "a"), ch)
	assert.Empty(t, ch)
}

func TestWatch_ClosedOnStoreClose(t *testing.T) {
	store := newTestStore(t, &fakeKV{}, &fakeLocker{})
	require.NoError(t, store.Close())

	ch, err := store.Watch(context.Background(), "/nodes/")
	require.NoError(t, err)

	select {
	case _, open := <-ch:
		assert.False(t, open, "watch channel must be closed after store close")
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after store close")
	}
}

func TestWatch_ClosedOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newTestStore(t, &fakeKV{}, nil)
	// client 为 nil 时订阅循环不能走到真实后端；取消的 ctx 让它立即退出
	ch, err := store.Watch(ctx, "/nodes/")
	require.NoError(t, err)

	_, open := <-ch
	assert.False(t, open, "watch channel must be closed after cancellation")
}
