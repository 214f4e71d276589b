package metastore

import (
	"context"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/metrics"
)

// watchReconnectDelay 订阅流断开后重建前的等待时间
const watchReconnectDelay = time.Second

func (s *etcdStore) Watch(ctx context.Context, prefix string) (<-chan Event, error) {
	s.countOp(ctx, "watch")

	ch := make(chan Event, s.cfg.WatchBufferSize)
	fullPrefix := s.cfg.Prefix + prefix
	go s.watchLoop(ctx, prefix, fullPrefix, ch)
	return ch, nil
}

// watchLoop 订阅监督循环
//
// 流出错时记录日志、等待一秒后从当前时刻重建订阅，不回放断档期间的
// 事件；订阅方只会观测到投递间隙，不会收到错误。通道写满时丢弃新事件。
// ctx 取消或 Store 关闭时退出并关闭通道；Store 关闭会取消派生的订阅
// 上下文，阻塞中的流也随之终止。
func (s *etcdStore) watchLoop(ctx context.Context, prefix, fullPrefix string, ch chan<- Event) {
	defer close(ch)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		s.logger.DebugContext(ctx, "watching prefix", clog.String("prefix", prefix))
		stream := s.client.Watch(ctx, fullPrefix, clientv3.WithPrefix())

		for resp := range stream {
			if err := resp.Err(); err != nil {
				s.logger.ErrorContext(ctx, "watch stream error",
					clog.String("prefix", prefix), clog.Error(err))
				break
			}
			for _, ev := range resp.Events {
				s.dispatchEvent(ctx, prefix, ev, ch)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(watchReconnectDelay):
		}
	}
}

func (s *etcdStore) dispatchEvent(ctx context.Context, prefix string, ev *clientv3.Event, ch chan<- Event) {
	itemKey, ok := strings.CutPrefix(string(ev.Kv.Key), s.cfg.Prefix)
	if !ok {
		s.logger.WarnContext(ctx, "watch event key outside store prefix",
			clog.String("key", string(ev.Kv.Key)))
		return
	}

	var event Event
	switch ev.Type {
	case mvccpb.PUT:
		event = Event{Type: EventPut, Key: itemKey, Value: ev.Kv.Value}
	case mvccpb.DELETE:
		event = Event{Type: EventDelete, Key: itemKey}
	default:
		return
	}

	select {
	case ch <- event:
	default:
		if s.watchDropped != nil {
			s.watchDropped.Inc(ctx, metrics.L("prefix", prefix))
		}
		s.logger.WarnContext(ctx, "watch channel full, event dropped",
			clog.String("prefix", prefix), clog.String("key", itemKey))
	}
}
