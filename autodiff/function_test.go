package autodiff_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellurio-ai/tellurio-go/autodiff"
)

func TestApplyDecodesSingleVariableResult(t *testing.T) {
	fc := newFakeCaller()
	fc.results["run_function"] = map[string]interface{}{
		"result": map[string]interface{}{
			"data": map[string]interface{}{
				"variable_id":   "out-1",
				"data":          "3",
				"role":          "sum",
				"requires_grad": false,
				"is_leaf":       true,
			},
		},
	}

	out, err := autodiff.Apply(context.Background(), fc, "Add", []interface{}{"1", "2"}, nil)
	require.NoError(t, err)

	v, ok := out.(*autodiff.Variable)
	require.True(t, ok)
	assert.Equal(t, "out-1", v.VariableID())
	assert.Equal(t, "3", v.Data())

	require.Len(t, fc.calls, 1)
	assert.Equal(t, "run_function", fc.calls[0].method)
}

func TestApplyFailsWithoutResultData(t *testing.T) {
	fc := newFakeCaller()
	fc.results["run_function"] = map[string]interface{}{"result": map[string]interface{}{}}

	_, err := autodiff.Apply(context.Background(), fc, "Add", nil, nil)
	require.Error(t, err)
}
