package optim_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellurio-ai/tellurio-go/autodiff"
	"github.com/tellurio-ai/tellurio-go/optim"
	"github.com/tellurio-ai/tellurio-go/rpc"
)

type fakeCaller struct {
	calls   []string
	results map[string]interface{}
}

func newFakeCaller() *fakeCaller { return &fakeCaller{results: map[string]interface{}{}} }

func (f *fakeCaller) Call(ctx context.Context, method string, params, result interface{}) (rpc.ID, error) {
	f.calls = append(f.calls, method)
	if r, ok := f.results[method]; ok && result != nil {
		data, err := json.Marshal(r)
		if err != nil {
			return rpc.ID{}, err
		}
		if err := json.Unmarshal(data, result); err != nil {
			return rpc.ID{}, err
		}
	}
	return rpc.NewCallID(), nil
}

func (f *fakeCaller) Notify(ctx context.Context, method string, params interface{}) error {
	f.calls = append(f.calls, method)
	return nil
}

func TestNewTGDRegistersOptimizer(t *testing.T) {
	fc := newFakeCaller()
	fc.results["create_variable"] = map[string]string{"variable_id": "p-1"}
	fc.results["create_optimizer"] = map[string]string{"optimizer_id": "opt-1"}

	p, err := autodiff.NewParameter(context.Background(), fc, "w", "weight")
	require.NoError(t, err)

	opt, err := optim.New(context.Background(), fc, []*autodiff.Parameter{p}, optim.Defaults{Momentum: 2})
	require.NoError(t, err)
	assert.Equal(t, "opt-1", opt.OptimizerID())

	got, ok := optim.Handles.Get("opt-1")
	require.True(t, ok)
	assert.Same(t, opt, got)
}

func TestStepIssuesOptimizerStepRPC(t *testing.T) {
	fc := newFakeCaller()
	fc.results["create_variable"] = map[string]string{"variable_id": "p-2"}
	fc.results["create_optimizer"] = map[string]string{"optimizer_id": "opt-2"}
	fc.results["optimizer_step"] = map[string]string{"message": "Ok"}

	p, err := autodiff.NewParameter(context.Background(), fc, "w", "weight")
	require.NoError(t, err)
	opt, err := optim.New(context.Background(), fc, []*autodiff.Parameter{p}, optim.Defaults{})
	require.NoError(t, err)

	require.NoError(t, opt.Step(context.Background()))
	assert.Contains(t, fc.calls, "optimizer_step")
}

func TestZeroGradClearsMomentumAndParamGrad(t *testing.T) {
	fc := newFakeCaller()
	fc.results["create_variable"] = map[string]string{"variable_id": "p-3"}
	fc.results["create_optimizer"] = map[string]string{"optimizer_id": "opt-3"}
	fc.results["optimizer_zero_grad"] = map[string]string{"message": "Ok"}
	fc.results["update_variable"] = map[string]string{"message": "Ok"}

	p, err := autodiff.NewParameter(context.Background(), fc, "w", "weight")
	require.NoError(t, err)
	opt, err := optim.New(context.Background(), fc, []*autodiff.Parameter{p}, optim.Defaults{Momentum: 1})
	require.NoError(t, err)

	g, err := autodiff.NewVariable(context.Background(), nil, "grad", "grad", false)
	require.NoError(t, err)
	opt.RecordMomentum(p.VariableID(), g)
	require.Len(t, opt.MomentumBuffer(p.VariableID()), 1)

	require.NoError(t, opt.ZeroGrad(context.Background()))
	assert.Empty(t, opt.MomentumBuffer(p.VariableID()))
	assert.Empty(t, p.Grad())
}

func TestRecordMomentumTrimsToWindowSize(t *testing.T) {
	fc := newFakeCaller()
	fc.results["create_variable"] = map[string]string{"variable_id": "p-4"}
	fc.results["create_optimizer"] = map[string]string{"optimizer_id": "opt-4"}

	p, err := autodiff.NewParameter(context.Background(), fc, "w", "weight")
	require.NoError(t, err)
	opt, err := optim.New(context.Background(), fc, []*autodiff.Parameter{p}, optim.Defaults{Momentum: 2})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		g, err := autodiff.NewVariable(context.Background(), nil, i, "grad", false)
		require.NoError(t, err)
		opt.RecordMomentum(p.VariableID(), g)
	}
	assert.Len(t, opt.MomentumBuffer(p.VariableID()), 2)
}
