package autodiff

import (
	"context"
	"sync"
	"time"

	"github.com/tellurio-ai/tellurio-go/errkit"
	"github.com/tellurio-ai/tellurio-go/wire"
)

// gradFnWaitTimeout bounds how long a GradFn read blocks on an unresolved
// pending-grad-fn entry, per spec.md §4.2's "bounded timeout" read. A var,
// not a const, so tests can shrink it via SetGradFnWaitTimeoutForTest.
var gradFnWaitTimeout = 5 * time.Second

// SetGradFnWaitTimeoutForTest overrides gradFnWaitTimeout and returns a
// restore func, for tests that need to exercise the timeout path quickly.
func SetGradFnWaitTimeoutForTest(d time.Duration) (restore func()) {
	prev := gradFnWaitTimeout
	gradFnWaitTimeout = d
	return func() { gradFnWaitTimeout = prev }
}

// Variable mirrors one node of the server's textual autodiff graph
// (spec.md §3). All governed attribute writes go through the setters below,
// which apply the change locally and, unless the suppression flag is
// active, forward it to the server via update_variable and block on the
// reply.
type Variable struct {
	mu sync.Mutex

	conn Caller

	variableID string
	data       interface{}
	role       string

	requiresGrad bool
	grad         []*Variable
	outputNr     int
	gradFn       *Node
	isLeaf       bool
	retainGrad   bool

	pendingGrad     bool
	pendingData     bool
	pendingGradFnID string

	initialized bool
}

// NewVariable constructs a Variable and issues the create_variable RPC that
// adopts the server-assigned id, matching spec.md §3's "entities are
// created either by local constructor ... or by decoding a server
// response". The constructor's own writes (data/role/requires_grad) are not
// separately forwarded: the server learns them from the create_variable
// call itself.
func NewVariable(ctx context.Context, conn Caller, data interface{}, role string, requiresGrad bool) (*Variable, error) {
	v := &Variable{
		conn:         conn,
		data:         data,
		role:         role,
		requiresGrad: requiresGrad,
		isLeaf:       true,
		initialized:  true,
	}

	if conn == nil {
		return v, nil
	}

	var result struct {
		VariableID string `json:"variable_id"`
	}
	if _, err := conn.Call(ctx, "create_variable", map[string]interface{}{
		"data":          data,
		"role":          role,
		"requires_grad": requiresGrad,
	}, &result); err != nil {
		return nil, err
	}
	v.variableID = result.VariableID
	Variables.Register(v.variableID, v)
	return v, nil
}

// newBareVariable constructs a Variable with no RPC and no registration,
// used by the decoder (decode.go) which populates fields itself
// and registers once fully initialized, mirroring deserialize_output's
// direct `Variable(...)` construction under suppression.
func newBareVariable(data interface{}, role string, requiresGrad bool) *Variable {
	return &Variable{data: data, role: role, requiresGrad: requiresGrad, isLeaf: true}
}

// WireTag implements wire.Encodable.
func (v *Variable) WireTag() (tag, id string) { return wire.TagVariable, v.VariableID() }

// VariableID returns the server-assigned id, or "" if not yet assigned.
func (v *Variable) VariableID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.variableID
}

// SetVariableID is used only by the decoder to adopt a server-assigned id
// after construction; it does not register the variable.
func (v *Variable) SetVariableID(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.variableID = id
}

func (v *Variable) Data() interface{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.data
}

func (v *Variable) Role() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.role
}

func (v *Variable) RequiresGrad() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.requiresGrad
}

func (v *Variable) Grad() []*Variable {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*Variable, len(v.grad))
	copy(out, v.grad)
	return out
}

func (v *Variable) OutputNr() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.outputNr
}

// GradFn returns the grad_fn node, blocking on a bounded timeout if this
// Variable is still enqueued in the pending-grad-fn map awaiting that node's
// registration (spec.md §4.2's last paragraph). The read fails if the wait
// times out before the corresponding create_node arrives.
func (v *Variable) GradFn() (*Node, error) {
	v.mu.Lock()
	pendingID := v.pendingGradFnID
	v.mu.Unlock()

	if pendingID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), gradFnWaitTimeout)
		defer cancel()
		if err := PendingGradFn.Wait(ctx, pendingID); err != nil {
			return nil, err
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gradFn == nil && v.pendingGradFnID != "" {
		// Drained but not yet linked: the node registers before Drain runs.
		if node, ok := Nodes.Get(v.pendingGradFnID); ok {
			return node, nil
		}
	}
	return v.gradFn, nil
}

func (v *Variable) IsLeaf() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.isLeaf
}

func (v *Variable) RetainGradFlag() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.retainGrad
}

// update forwards a single field change to the server unless suppression is
// active, per spec.md §4.3 rules (1)/(2).
func (v *Variable) update(ctx context.Context, field string, value interface{}) error {
	if v.conn == nil || Suppressed() {
		return nil
	}
	var result map[string]string
	_, err := v.conn.Call(ctx, "update_variable", map[string]interface{}{
		"variable_id": v.variableID,
		"field":       field,
		"value":       value,
	}, &result)
	if err != nil {
		return err
	}
	if !errkit.IsOk(result) {
		return errkit.NewProtocolError("update_variable(%s) returned non-Ok result: %v", field, result)
	}
	return nil
}

// SetData is the governed write for the data field.
func (v *Variable) SetData(ctx context.Context, data interface{}) error {
	v.mu.Lock()
	v.data = data
	v.mu.Unlock()
	return v.update(ctx, "data", data)
}

// SetRole is the governed write for the role field.
func (v *Variable) SetRole(ctx context.Context, role string) error {
	v.mu.Lock()
	v.role = role
	v.mu.Unlock()
	return v.update(ctx, "role", role)
}

// SetRequiresGrad is the governed write for the requires_grad field alone.
// Use RequiresGrad_ for the full semantic helper that also resets is_leaf.
func (v *Variable) SetRequiresGrad(ctx context.Context, requiresGrad bool) error {
	v.mu.Lock()
	v.requiresGrad = requiresGrad
	v.mu.Unlock()
	return v.update(ctx, "requires_grad", requiresGrad)
}

// SetOutputNr is the governed write for the output_nr field.
func (v *Variable) SetOutputNr(ctx context.Context, outputNr int) error {
	v.mu.Lock()
	v.outputNr = outputNr
	v.mu.Unlock()
	return v.update(ctx, "output_nr", outputNr)
}

// SetIsLeaf is the governed write for the is_leaf field.
func (v *Variable) SetIsLeaf(ctx context.Context, isLeaf bool) error {
	v.mu.Lock()
	v.isLeaf = isLeaf
	v.mu.Unlock()
	return v.update(ctx, "is_leaf", isLeaf)
}

// SetDataLocal, SetRoleLocal, SetRequiresGradLocal, SetOutputNrLocal,
// SetIsLeafLocal and SetRetainGradLocal apply a field write without
// forwarding it to the server, for use by the update_variable inbound
// handler (spec.md §4.6), which already runs under suppression but needs a
// field-name-keyed entry point from outside the package.
func (v *Variable) SetDataLocal(data interface{}) {
	v.mu.Lock()
	v.data = data
	v.mu.Unlock()
}

func (v *Variable) SetRoleLocal(role string) {
	v.mu.Lock()
	v.role = role
	v.mu.Unlock()
}

func (v *Variable) SetRequiresGradLocal(requiresGrad bool) {
	v.mu.Lock()
	v.requiresGrad = requiresGrad
	v.mu.Unlock()
}

func (v *Variable) SetOutputNrLocal(outputNr int) {
	v.mu.Lock()
	v.outputNr = outputNr
	v.mu.Unlock()
}

func (v *Variable) SetIsLeafLocal(isLeaf bool) {
	v.mu.Lock()
	v.isLeaf = isLeaf
	v.mu.Unlock()
}

func (v *Variable) SetRetainGradLocal(retainGrad bool) {
	v.mu.Lock()
	v.retainGrad = retainGrad
	v.mu.Unlock()
}

// setGradLocal replaces the grad slice without emitting; used internally by
// RequiresGrad_ (clearing grad per invariant I2) and by the decoder.
func (v *Variable) setGradLocal(grad []*Variable) {
	v.mu.Lock()
	v.grad = grad
	v.mu.Unlock()
}

// SetGrad is the governed write for the grad field, used when the whole
// gradient sequence is replaced (as opposed to AppendGrad's incremental
// update).
func (v *Variable) SetGrad(ctx context.Context, grad []*Variable) error {
	v.setGradLocal(grad)
	return v.update(ctx, "grad", encodeGradForWire(grad))
}

// SetGradLocal is the exported, non-emitting counterpart used by the
// update_variable inbound handler.
func (v *Variable) SetGradLocal(grad []*Variable) {
	v.setGradLocal(grad)
}

// AppendGrad adds one Variable to grad and sends a single append_grad
// update, distinct from the generic update_variable path (spec.md §4.3).
func (v *Variable) AppendGrad(ctx context.Context, g *Variable) error {
	v.mu.Lock()
	v.grad = append(v.grad, g)
	v.mu.Unlock()

	if v.conn == nil || Suppressed() {
		return nil
	}
	var result map[string]string
	_, err := v.conn.Call(ctx, "append_grad", map[string]interface{}{
		"variable_id": v.variableID,
		"grad":        encodeGradForWire([]*Variable{g}),
	}, &result)
	if err != nil {
		return err
	}
	if !errkit.IsOk(result) {
		return errkit.NewProtocolError("append_grad returned non-Ok result: %v", result)
	}
	return nil
}

// appendGradLocal appends without emitting, used by the append_grad inbound
// handler which reconstructs the Variable and appends it locally (spec.md
// §4.6).
func (v *Variable) appendGradLocal(g *Variable) {
	v.mu.Lock()
	v.grad = append(v.grad, g)
	v.mu.Unlock()
}

// AppendGradLocal is the exported, non-emitting counterpart of AppendGrad,
// used by the handlers package's append_grad inbound handler.
func (v *Variable) AppendGradLocal(g *Variable) {
	v.appendGradLocal(g)
}

func encodeGradForWire(grad []*Variable) []interface{} {
	out := make([]interface{}, len(grad))
	for i, g := range grad {
		out[i] = map[string]interface{}{"variable_id": g.VariableID()}
	}
	return out
}

// SetGradFn is the gated write for grad_fn: it only succeeds while the
// grad-fn-assignment gate is open (spec.md I4), which is only ever true on
// the decode and server-initiated-handler paths.
func (v *Variable) SetGradFn(ctx context.Context, node *Node) error {
	if !GradFnGateActive() {
		return errkit.NewInvariantError("setting grad_fn is only allowed on the server by the autodiff engine")
	}
	v.mu.Lock()
	v.gradFn = node
	v.mu.Unlock()
	return v.update(ctx, "grad_fn", node)
}

// setGradFnLocal sets grad_fn without the gate check or emission; used by
// the decoder, which enters WithGradFnGate explicitly for auditability even
// though this path bypasses the check, and by RequiresGrad_ to clear grad_fn.
func (v *Variable) setGradFnLocal(node *Node) {
	v.mu.Lock()
	v.gradFn = node
	v.mu.Unlock()
}

// SetGradFnLocalAndClearPending links a Variable drained out of the
// pending-grad-fn map to its now-registered Node (spec.md §4.2's "drains the
// pending-grad-fn map for that id, linking every waiter"), clearing the
// pending-grad-fn id it had been enqueued under.
func (v *Variable) SetGradFnLocalAndClearPending(node *Node) {
	v.mu.Lock()
	v.gradFn = node
	v.pendingGradFnID = ""
	v.mu.Unlock()
}

// RequiresGrad_ is the semantic helper mirroring requires_grad_(flag): it
// assigns requires_grad and, if flag is false, also clears grad/grad_fn
// (invariant I2) and resets is_leaf to true, in that order, emitting exactly
// two notifications (requires_grad, then is_leaf).
func (v *Variable) RequiresGrad_(ctx context.Context, flag bool) error {
	if err := v.SetRequiresGrad(ctx, flag); err != nil {
		return err
	}
	if !flag {
		v.setGradLocal(nil)
		v.setGradFnLocal(nil)
		if err := v.SetIsLeaf(ctx, true); err != nil {
			return err
		}
	}
	return nil
}

// Copy_ mirrors copy_(src): it emits three updates, in order, copying data,
// role and requires_grad from src.
func (v *Variable) Copy_(ctx context.Context, src *Variable) error {
	if err := v.SetData(ctx, src.Data()); err != nil {
		return err
	}
	if err := v.SetRole(ctx, src.Role()); err != nil {
		return err
	}
	return v.SetRequiresGrad(ctx, src.RequiresGrad())
}

// RetainGrad mirrors retain_grad(): it fails for leaves, otherwise sets
// _retain_grad true with a single emission.
func (v *Variable) RetainGrad(ctx context.Context) error {
	if v.IsLeaf() {
		return errkit.NewInvariantError("retain_grad() is not allowed on leaf Variables")
	}
	v.mu.Lock()
	v.retainGrad = true
	v.mu.Unlock()
	return v.update(ctx, "_retain_grad", true)
}
