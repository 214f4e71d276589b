package metrics

import "go.opentelemetry.io/otel/attribute"

// Label 指标标签，用于指标分组和筛选
type Label struct {
	Key   string
	Value string
}

// L 创建一个标签
//
// 示例：
//
//	counter.Inc(ctx, metrics.L("op", "get"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// toAttributes 将标签转换为 OTel 属性（内部使用）
func toAttributes(labels []Label) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	return attrs
}
