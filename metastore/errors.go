package metastore

import (
	"github.com/openobs/metakv/connector"
	"github.com/openobs/metakv/xerrors"
)

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("metastore: config is nil")

	// ErrConnectorNil 连接器为空
	ErrConnectorNil = xerrors.New("metastore: connector is nil")

	// ErrKeyNotExists 键不存在
	ErrKeyNotExists = xerrors.New("metastore: key not exists")

	// ErrCoordinatorUnsupported 指定的协调后端未实现
	ErrCoordinatorUnsupported = xerrors.New("metastore: coordinator unsupported")

	// ErrBackendUnavailable 协调后端网络层不可达（连接失败/命令超时）
	ErrBackendUnavailable = xerrors.New("metastore: backend unavailable")

	// ErrMalformedResponse 后端返回了意料之外的响应形态，不可重试
	ErrMalformedResponse = xerrors.New("metastore: malformed response")

	// ErrUpdateRejected 调用方的读改写回调返回了错误，未产生任何写入
	ErrUpdateRejected = xerrors.New("metastore: update rejected")

	// ErrLeaseExpired 租约已过期或被吊销，续约无法继续
	ErrLeaseExpired = xerrors.New("metastore: lease expired or revoked")
)

// backendErr 为后端错误附加操作上下文，并标记网络层不可达的错误类别
func backendErr(err error, op, key string) error {
	if connector.IsUnavailableErr(err) {
		return xerrors.Wrapf(xerrors.Join(ErrBackendUnavailable, err), "%s %s", op, key)
	}
	return xerrors.Wrapf(err, "metastore: %s %s", op, key)
}
