package xerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	base := New("base error")
	wrapped := Wrap(base, "context")

	assert.EqualError(t, wrapped, "context: base error")
	assert.True(t, Is(wrapped, base))
}

func TestWrap_NilError(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %d", 1))
}

func TestWrapf(t *testing.T) {
	base := New("base error")
	wrapped := Wrapf(base, "key %q", "/cfg/a")

	assert.EqualError(t, wrapped, `key "/cfg/a": base error`)
	assert.True(t, Is(wrapped, base))
}

func TestCollector_KeepsFirst(t *testing.T) {
	var c Collector
	first := New("first")
	c.Collect(nil)
	c.Collect(first)
	c.Collect(New("second"))

	assert.Equal(t, first, c.Err())
}
