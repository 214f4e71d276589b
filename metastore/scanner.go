package metastore

import (
	"context"
	"strconv"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// pageFetcher 取回一页条目
//
// fromKey 为 false 时按前缀取首页；为 true 时从给定键（含）继续，
// 两种模式都按键升序、限定单页大小。
type pageFetcher func(ctx context.Context, key string, fromKey bool) (*clientv3.GetResponse, error)

// scanPages 分页扫描 fullPrefix 下的全部条目
//
// from-key 查询是闭区间，游标取上一页最后一个键的紧邻后继（追加 "\x00"），
// 保证每一页都有进展，页大小为 1 时也不会在游标键上原地打转。两个终止
// 条件：返回的页小于单页大小（最后一页），或某个键不再带有查询前缀
// （防御性边界）。对剥离存储前缀后的每个键值调用一次 visit。
// 空前缀扫出空结果，不是错误。
func scanPages(ctx context.Context, fetch pageFetcher, storePrefix, fullPrefix string, pageSize int64, visit func(key string, value []byte)) error {
	key := fullPrefix
	fromKey := false

	for {
		resp, err := fetch(ctx, key, fromKey)
		if err != nil {
			return err
		}

		haveNext := int64(len(resp.Kvs)) >= pageSize
		for _, kv := range resp.Kvs {
			itemKey := string(kv.Key)
			if !strings.HasPrefix(itemKey, fullPrefix) {
				haveNext = false
				break
			}
			visit(strings.TrimPrefix(itemKey, storePrefix), kv.Value)
		}

		if !haveNext {
			return nil
		}
		key = string(resp.Kvs[len(resp.Kvs)-1].Key) + "\x00"
		fromKey = true
	}
}

func (s *etcdStore) fetchPage(ctx context.Context, key string, fromKey bool) (*clientv3.GetResponse, error) {
	opts := []clientv3.OpOption{
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
		clientv3.WithLimit(s.cfg.LoadPageSize),
	}
	if fromKey {
		opts = append(opts, clientv3.WithFromKey())
	} else {
		opts = append(opts, clientv3.WithPrefix())
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	resp, err := s.kv.Get(opCtx, key, opts...)
	if err != nil {
		return nil, backendErr(err, "list", key)
	}
	return resp, nil
}

func (s *etcdStore) scanPrefix(ctx context.Context, prefix string, visit func(key string, value []byte)) error {
	fullPrefix := s.cfg.Prefix + prefix
	return scanPages(ctx, s.fetchPage, s.cfg.Prefix, fullPrefix, s.cfg.LoadPageSize, visit)
}

func (s *etcdStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	s.countOp(ctx, "list")
	result := make(map[string][]byte)
	err := s.scanPrefix(ctx, prefix, func(key string, value []byte) {
		result[key] = value
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *etcdStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	s.countOp(ctx, "list_keys")
	result := []string{}
	err := s.scanPrefix(ctx, prefix, func(key string, _ []byte) {
		result = append(result, key)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *etcdStore) ListValues(ctx context.Context, prefix string) ([][]byte, error) {
	s.countOp(ctx, "list_values")
	result := [][]byte{}
	err := s.scanPrefix(ctx, prefix, func(_ string, value []byte) {
		result = append(result, value)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *etcdStore) ListValuesByStartDt(ctx context.Context, prefix string, minDt, maxDt int64) ([]VersionedValue, error) {
	if minDt == 0 && maxDt == 0 {
		values, err := s.ListValues(ctx, prefix)
		if err != nil {
			return nil, err
		}
		result := make([]VersionedValue, 0, len(values))
		for _, v := range values {
			result = append(result, VersionedValue{StartDt: 0, Value: v})
		}
		return result, nil
	}

	s.countOp(ctx, "list_values_by_start_dt")
	result := []VersionedValue{}
	err := s.scanPrefix(ctx, prefix, func(key string, value []byte) {
		startDt := parseStartDt(key)
		if startDt >= minDt && startDt <= maxDt {
			result = append(result, VersionedValue{StartDt: startDt, Value: value})
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseStartDt 解析键尾部的 "/{start_dt}" 段，解析失败记为 0
func parseStartDt(key string) int64 {
	segment := key
	if idx := strings.LastIndexByte(key, '/'); idx >= 0 {
		segment = key[idx+1:]
	}
	startDt, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0
	}
	return startDt
}
