package metastore

// EventType 变更事件类型
type EventType int

const (
	// EventPut 键被写入或覆盖
	EventPut EventType = iota
	// EventDelete 键被删除
	EventDelete
)

// String 返回事件类型的可读名称
func (t EventType) String() string {
	switch t {
	case EventPut:
		return "put"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event 订阅流中的一条变更
//
// Key 已剥离存储前缀；Delete 事件的 Value 为 nil。
type Event struct {
	Type  EventType
	Key   string
	Value []byte
}

// Stats 后端存储的总体统计
type Stats struct {
	// BytesLen 后端数据库占用的字节数
	BytesLen int64
	// KeysCount 后端的键总数（含本存储前缀之外的键）
	KeysCount int64
}

// VersionedValue 带版本时间戳的值
type VersionedValue struct {
	// StartDt 从键尾部 "/{start_dt}" 段解析出的版本时间戳，无法解析时为 0
	StartDt int64
	Value   []byte
}

// NewEntry 读改写操作要追加的新条目
type NewEntry struct {
	Key   string
	Value []byte
	// StartDt 大于 0 时以 "/{start_dt}" 作为键的版本后缀
	StartDt int64
}

// UpdateResult 读改写回调的返回结果
//
// Value 非 nil 时用新值覆写现有条目（保持原键不变）；
// NewEntry 非 nil 时额外写入一个新条目。两者都为 nil 等同于无操作。
type UpdateResult struct {
	Value    []byte
	NewEntry *NewEntry
}

// UpdateFunc 读改写回调
//
// old 为当前最新值（found 为 false 时为 nil）。返回 (nil, nil) 表示放弃写入；
// 返回错误则中止整个操作且不产生任何写入。
type UpdateFunc func(old []byte, found bool) (*UpdateResult, error)
