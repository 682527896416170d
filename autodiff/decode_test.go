package autodiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellurio-ai/tellurio-go/autodiff"
)

func TestDecodeArgResolvesVariableReference(t *testing.T) {
	fc := newFakeCaller()
	fc.results["create_variable"] = map[string]string{"variable_id": "da-1"}
	v, err := autodiff.NewVariable(t.Context(), fc, "x", "input", false)
	require.NoError(t, err)

	resolved, err := autodiff.DecodeArg(map[string]interface{}{
		"__variable__": true,
		"variable_id":  v.VariableID(),
	})
	require.NoError(t, err)
	assert.Same(t, v, resolved)
}

func TestDecodeArgUnknownVariableFails(t *testing.T) {
	_, err := autodiff.DecodeArg(map[string]interface{}{
		"__variable__": true,
		"variable_id":  "does-not-exist",
	})
	require.Error(t, err)
}

func TestDecodeOutputBuildsVariableWithPendingGradFn(t *testing.T) {
	out, err := autodiff.DecodeOutput(map[string]interface{}{
		"variable_id":   "do-1",
		"data":          "y",
		"role":          "output",
		"requires_grad": true,
		"is_leaf":       false,
		"_grad_fn":      "pending-node",
	})
	require.NoError(t, err)

	v, ok := out.(*autodiff.Variable)
	require.True(t, ok)
	assert.Equal(t, "pending-node", v.PendingGradFnID())
	assert.True(t, autodiff.PendingGradFn.Has("pending-node"))

	node := autodiff.NewNode("pending-node", "MulBackward")
	autodiff.Nodes.Register("pending-node", node)
	waiters := autodiff.PendingGradFn.Drain("pending-node")
	require.Len(t, waiters, 1)
	assert.Same(t, v, waiters[0])
}

func TestDecodeOutputSequence(t *testing.T) {
	out, err := autodiff.DecodeOutput([]interface{}{
		map[string]interface{}{"variable_id": "do-2", "data": "a"},
		map[string]interface{}{"variable_id": "do-3", "data": "b"},
	})
	require.NoError(t, err)

	seq, ok := out.([]interface{})
	require.True(t, ok)
	require.Len(t, seq, 2)
}

func TestDecodeOutputRejectsUnknownShape(t *testing.T) {
	_, err := autodiff.DecodeOutput("just a string")
	require.Error(t, err)
}
