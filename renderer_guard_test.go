package metaballs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSingleCompositor(t *testing.T) {
	app := NewAppBuilder().Build()

	ensureSingleCompositor(app, "wgpu")
	tag, ok := Resource[CompositorTag](app)
	require.True(t, ok)
	assert.Equal(t, "wgpu", tag.Name)

	assert.PanicsWithValue(t, "Multiple compositors installed: wgpu and other", func() {
		ensureSingleCompositor(app, "other")
	})
	assert.Panics(t, func() { ensureSingleCompositor(nil, "x") })
}
