package metrics

import "context"

// noopMeter 是一个什么都不做的 Meter 实现（内部使用）
type noopMeter struct{}

// Discard 创建一个静默的 Meter 实例
func Discard() Meter {
	return &noopMeter{}
}

func (m *noopMeter) Counter(name string, desc string) (Counter, error) {
	return &noopCounter{}, nil
}

func (m *noopMeter) Gauge(name string, desc string) (Gauge, error) {
	return &noopGauge{}, nil
}

func (m *noopMeter) Shutdown(ctx context.Context) error {
	return nil
}

type noopCounter struct{}

func (c *noopCounter) Inc(ctx context.Context, labels ...Label)            {}
func (c *noopCounter) Add(ctx context.Context, v float64, labels ...Label) {}

type noopGauge struct{}

func (g *noopGauge) Set(ctx context.Context, v float64, labels ...Label) {}
