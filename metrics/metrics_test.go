package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_Disabled(t *testing.T) {
	meter, err := New(&Config{Enabled: false})
	require.NoError(t, err)

	counter, err := meter.Counter("test_total", "test counter")
	require.NoError(t, err)
	counter.Inc(context.Background())
	counter.Add(context.Background(), 5, L("k", "v"))

	gauge, err := meter.Gauge("test_gauge", "test gauge")
	require.NoError(t, err)
	gauge.Set(context.Background(), 1.5)

	assert.NoError(t, meter.Shutdown(context.Background()))
}

func TestNew_Enabled(t *testing.T) {
	meter, err := New(NewDevDefaultConfig("metakv-test"))
	require.NoError(t, err)
	defer meter.Shutdown(context.Background())

	counter, err := meter.Counter("metakv_test_ops_total", "ops")
	require.NoError(t, err)
	counter.Inc(context.Background(), L("op", "get"))

	gauge, err := meter.Gauge("metakv_test_active", "active")
	require.NoError(t, err)
	gauge.Set(context.Background(), 2, L("kind", "watch"))
}

func TestToAttributes(t *testing.T) {
	assert.Nil(t, toAttributes(nil))

	attrs := toAttributes([]Label{L("a", "1"), L("b", "2")})
	require.Len(t, attrs, 2)
	assert.Equal(t, "a", string(attrs[0].Key))
	assert.Equal(t, "1", attrs[0].Value.AsString())
}
