// Package optim implements the Optimizer handle of spec.md §3 and its TGD
// (textual gradient descent) specialisation, supplemented from
// afnio/optim/tgd.py: an optimizer_id, a reference to the parameter group
// and model handle, and a free-form defaults mapping (messages,
// constraints, momentum, completion args). step() is a pure RPC and
// zero_grad() first clears local grads and momentum buffers; both RPCs expect
// the canonical {"message":"Ok"} acknowledgement, mirroring the Variable
// governed-write pattern in autodiff.Variable.update.
package optim

import (
	"context"
	"sync"

	"github.com/tellurio-ai/tellurio-go/autodiff"
	"github.com/tellurio-ai/tellurio-go/errkit"
	"github.com/tellurio-ai/tellurio-go/model"
	"github.com/tellurio-ai/tellurio-go/registry"
)

// Handles is the process-wide optimizer registry keyed by server-assigned
// optimizer_id (spec.md §4.2).
var Handles = registry.New[*TGD]("optimizer")

// Defaults is the free-form defaults mapping spec.md §3 describes:
// messages, inputs, constraints, momentum and completion args, plus the
// model client the optimizer drives.
type Defaults struct {
	ModelClient     *model.Handle
	Messages        []map[string]interface{}
	Inputs          map[string]interface{}
	Constraints     []interface{}
	Momentum        int
	CompletionArgs  map[string]interface{}
}

// TGD is a Textual Gradient Descent optimizer handle: an optimizer_id, the
// parameter group it was constructed over, its Defaults, and a local
// momentum-buffer per parameter id (afnio/optim/tgd.py's momentum window).
type TGD struct {
	mu sync.Mutex

	conn autodiff.Caller

	optimizerID string
	params      []*autodiff.Parameter
	defaults    Defaults

	momentumBuffers map[string][]*autodiff.Variable
}

// New constructs a TGD optimizer over params, issuing the create_optimizer
// RPC that adopts the server-assigned id. The method name is invented
// (spec.md names only optimizer_step/optimizer_zero_grad explicitly); it
// follows the create_variable naming convention used by autodiff.NewVariable.
func New(ctx context.Context, conn autodiff.Caller, params []*autodiff.Parameter, defaults Defaults) (*TGD, error) {
	t := &TGD{
		conn:            conn,
		params:          params,
		defaults:        defaults,
		momentumBuffers: make(map[string][]*autodiff.Variable),
	}

	if conn == nil {
		return t, nil
	}

	paramIDs := make([]string, len(params))
	for i, p := range params {
		paramIDs[i] = p.VariableID()
	}

	var result struct {
		OptimizerID string `json:"optimizer_id"`
	}
	if _, err := conn.Call(ctx, "create_optimizer", map[string]interface{}{
		"params":          paramIDs,
		"model_client":    modelIDOrEmpty(defaults.ModelClient),
		"messages":        defaults.Messages,
		"inputs":          defaults.Inputs,
		"constraints":     defaults.Constraints,
		"momentum":        defaults.Momentum,
		"completion_args": defaults.CompletionArgs,
	}, &result); err != nil {
		return nil, err
	}
	t.optimizerID = result.OptimizerID
	Handles.Register(t.optimizerID, t)
	return t, nil
}

func modelIDOrEmpty(h *model.Handle) string {
	if h == nil {
		return ""
	}
	return h.ModelID
}

// OptimizerID returns the server-assigned id.
func (t *TGD) OptimizerID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.optimizerID
}

// Params returns the parameter group the optimizer was constructed over.
func (t *TGD) Params() []*autodiff.Parameter {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*autodiff.Parameter, len(t.params))
	copy(out, t.params)
	return out
}

// Step performs a single optimization step: a pure optimizer_step RPC
// keyed by optimizer_id, expecting the canonical Ok acknowledgement.
// Mirrors TGD.step's call into Optimizer.step() (the server performs the
// actual textual gradient computation; the client only triggers it).
func (t *TGD) Step(ctx context.Context) error {
	if t.conn == nil {
		return nil
	}
	var result map[string]string
	_, err := t.conn.Call(ctx, "optimizer_step", map[string]interface{}{
		"optimizer_id": t.OptimizerID(),
	}, &result)
	if err != nil {
		return err
	}
	if !errkit.IsOk(result) {
		return errkit.NewProtocolError("optimizer_step returned non-Ok result: %v", result)
	}
	return nil
}

// ZeroGrad clears every parameter's local grad buffer and the optimizer's
// momentum buffers, then issues optimizer_zero_grad so the server clears
// its mirror too.
func (t *TGD) ZeroGrad(ctx context.Context) error {
	for _, p := range t.Params() {
		if err := p.SetGrad(ctx, nil); err != nil {
			return err
		}
	}

	t.mu.Lock()
	t.momentumBuffers = make(map[string][]*autodiff.Variable)
	t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	var result map[string]string
	_, err := t.conn.Call(ctx, "optimizer_zero_grad", map[string]interface{}{
		"optimizer_id": t.OptimizerID(),
	}, &result)
	if err != nil {
		return err
	}
	if !errkit.IsOk(result) {
		return errkit.NewProtocolError("optimizer_zero_grad returned non-Ok result: %v", result)
	}
	return nil
}

// MomentumBuffer returns the tracked gradient window for paramID, or nil if
// none has been recorded yet.
func (t *TGD) MomentumBuffer(paramID string) []*autodiff.Variable {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*autodiff.Variable(nil), t.momentumBuffers[paramID]...)
}

// RecordMomentum appends grad to paramID's momentum window, trimming it to
// the configured momentum size (afnio/optim/tgd.py's "Tracks the last
// `momentum` gradients").
func (t *TGD) RecordMomentum(paramID string, grad *autodiff.Variable) {
	t.mu.Lock()
	defer t.mu.Unlock()

	window := t.momentumBuffers[paramID]
	window = append(window, grad)
	if max := t.defaults.Momentum; max > 0 && len(window) > max {
		window = window[len(window)-max:]
	}
	t.momentumBuffers[paramID] = window
}
