package dlock

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/openobs/metakv/xerrors"
)

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("dlock: config is nil")

	// ErrConnectorNil 连接器为空
	ErrConnectorNil = xerrors.New("dlock: connector is nil")

	// ErrLockTimeout 所有加锁尝试均超时
	ErrLockTimeout = xerrors.New("dlock: lock wait timeout")

	// ErrLockAcquireFailure 加锁过程中出现非超时错误（不重试）
	ErrLockAcquireFailure = xerrors.New("dlock: lock acquire failure")
)

// isAttemptTimeout 判断一次加锁尝试的失败是否属于"尝试超时"类
//
// 只有这一类失败会触发重试；网络不可达、权限等错误属于硬失败。
func isAttemptTimeout(err error) bool {
	if err == nil {
		return false
	}
	if xerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return status.Code(err) == codes.DeadlineExceeded
}
