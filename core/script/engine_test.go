package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Execute(t *testing.T) {
	engine := NewEngine(nil)

	t.Run("mutates the binding in place", func(t *testing.T) {
		binding := map[string]any{"_source": map[string]any{"a": "hello"}}
		result, err := engine.Execute("js", `ctx._source.b = ctx._source.a; delete ctx._source.a;`, KindInline, nil, binding)
		require.NoError(t, err)

		source, ok := result["_source"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hello", source["b"])
		assert.NotContains(t, source, "a")
	})

	t.Run("exposes params", func(t *testing.T) {
		binding := map[string]any{"_source": map[string]any{}}
		params := map[string]any{"suffix": "!"}
		result, err := engine.Execute("javascript", `ctx._source.msg = "hi" + params.suffix;`, KindInline, params, binding)
		require.NoError(t, err)
		source := result["_source"].(map[string]any)
		assert.Equal(t, "hi!", source["msg"])
	})

	t.Run("empty language defaults to javascript", func(t *testing.T) {
		binding := map[string]any{"x": "y"}
		result, err := engine.Execute("", `ctx.x = ctx.x + "z";`, KindInline, nil, binding)
		require.NoError(t, err)
		assert.Equal(t, "yz", result["x"])
	})

	t.Run("rejects unsupported languages", func(t *testing.T) {
		_, err := engine.Execute("groovy", `1 + 1`, KindInline, nil, map[string]any{})
		assert.ErrorContains(t, err, "unsupported script language")
	})

	t.Run("surfaces script failures", func(t *testing.T) {
		_, err := engine.Execute("js", `throw new Error("boom");`, KindInline, nil, map[string]any{})
		assert.ErrorContains(t, err, "script execution failed")
	})

	t.Run("rejects a non-object ctx replacement", func(t *testing.T) {
		_, err := engine.Execute("js", `ctx = 42;`, KindInline, nil, map[string]any{})
		assert.Error(t, err)
	})
}
