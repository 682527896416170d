// Package handlers implements the server-initiated RPC dispatch table of
// spec.md §4.6: update_variable, append_grad, create_node, create_edge,
// clear_pending_grad and clear_pending_data. Every handler runs under
// autodiff.WithSuppression and replies with the same id as the incoming
// request, mirroring the teacher's Handler/Replier contract in
// rpc/handler.go.
package handlers

import (
	"context"
	"encoding/json"

	"github.com/tellurio-ai/tellurio-go/autodiff"
	"github.com/tellurio-ai/tellurio-go/errkit"
	"github.com/tellurio-ai/tellurio-go/rpc"
)

// Dispatch returns the rpc.Handler bound to the inbound path of a Conn,
// routing each Requester by Method() to its handler func. Unrecognized
// methods fall through to rpc.MethodNotFoundHandler.
func Dispatch() rpc.Handler {
	table := map[string]rpc.Handler{
		"update_variable":    rpc.ReplyHandler(handleUpdateVariable),
		"append_grad":        rpc.ReplyHandler(handleAppendGrad),
		"create_node":        rpc.ReplyHandler(handleCreateNode),
		"create_edge":        rpc.ReplyHandler(handleCreateEdge),
		"clear_pending_grad": rpc.ReplyHandler(handleClearPendingGrad),
		"clear_pending_data": rpc.ReplyHandler(handleClearPendingData),
	}
	return func(ctx context.Context, reply rpc.Replier, req rpc.Requester) error {
		h, ok := table[req.Method()]
		if !ok {
			return rpc.MethodNotFoundHandler(ctx, reply, req)
		}
		return h(ctx, reply, req)
	}
}

type updateVariableParams struct {
	VariableID string      `json:"variable_id"`
	Field      string      `json:"field"`
	Value      interface{} `json:"value"`
}

func handleUpdateVariable(ctx context.Context, reply rpc.Replier, req rpc.Requester) error {
	var p updateVariableParams
	if err := json.Unmarshal(req.Params(), &p); err != nil {
		return reply(ctx, nil, errkit.NewProtocolError("update_variable: malformed params: %v", err))
	}

	var applyErr error
	autodiff.WithSuppression(func() {
		v, err := autodiff.Variables.MustGet(p.VariableID)
		if err != nil {
			applyErr = err
			return
		}
		applyErr = applyVariableField(v, p.Field, p.Value)
	})
	if applyErr != nil {
		return reply(ctx, nil, applyErr)
	}
	return reply(ctx, errkit.OkResult(), nil)
}

// applyVariableField mirrors update_local_variable_field's field-name
// switch, writing locally without re-emitting (the write originated on the
// server).
func applyVariableField(v *autodiff.Variable, field string, value interface{}) error {
	switch field {
	case "data":
		v.SetDataLocal(value)
	case "role":
		v.SetRoleLocal(stringOr(value, ""))
	case "requires_grad":
		v.SetRequiresGradLocal(boolOr(value, false))
	case "output_nr":
		n, _ := asInt(value)
		v.SetOutputNrLocal(n)
	case "is_leaf":
		v.SetIsLeafLocal(boolOr(value, false))
	case "_retain_grad":
		v.SetRetainGradLocal(boolOr(value, false))
	case "grad":
		entries, _ := value.([]interface{})
		v.SetGradLocal(autodiff.DecodeGradEntries(entries))
	default:
		return errkit.NewProtocolError("update_variable: unknown field %q", field)
	}
	return nil
}

type appendGradParams struct {
	VariableID string                 `json:"variable_id"`
	Grad       map[string]interface{} `json:"grad"`
}

func handleAppendGrad(ctx context.Context, reply rpc.Replier, req rpc.Requester) error {
	var p appendGradParams
	if err := json.Unmarshal(req.Params(), &p); err != nil {
		return reply(ctx, nil, errkit.NewProtocolError("append_grad: malformed params: %v", err))
	}

	var applyErr error
	autodiff.WithSuppression(func() {
		v, err := autodiff.Variables.MustGet(p.VariableID)
		if err != nil {
			applyErr = err
			return
		}
		g, err := autodiff.DecodeOutput(toInterfaceMap(p.Grad))
		if err != nil {
			applyErr = err
			return
		}
		gv, ok := g.(*autodiff.Variable)
		if !ok {
			applyErr = errkit.NewTypeError("append_grad: expected a Variable payload")
			return
		}
		v.AppendGradLocal(gv)
	})
	if applyErr != nil {
		return reply(ctx, nil, applyErr)
	}
	return reply(ctx, errkit.OkResult(), nil)
}

type createNodeParams struct {
	Name   string `json:"name"`
	NodeID string `json:"node_id"`
}

func handleCreateNode(ctx context.Context, reply rpc.Replier, req rpc.Requester) error {
	var p createNodeParams
	if err := json.Unmarshal(req.Params(), &p); err != nil {
		return reply(ctx, nil, errkit.NewProtocolError("create_node: malformed params: %v", err))
	}

	autodiff.WithSuppression(func() {
		node := autodiff.NewNode(p.NodeID, p.Name)
		autodiff.Nodes.Register(p.NodeID, node)

		for _, waiter := range autodiff.PendingGradFn.Drain(p.NodeID) {
			autodiff.WithGradFnGate(func() {
				waiter.SetGradFnLocalAndClearPending(node)
			})
		}
	})
	return reply(ctx, errkit.OkResult(), nil)
}

type createEdgeParams struct {
	FromNodeID string  `json:"from_node_id"`
	ToNodeID   *string `json:"to_node_id"`
	OutputNr   int     `json:"output_nr"`
}

// handleCreateEdge resolves both endpoints and appends an edge to
// from.next_functions. to_node_id may be null (spec.md §8 scenario 1: an
// operand with requires_grad=false has no AccumulateGrad node), in which
// case the edge's Node is nil rather than looked up.
func handleCreateEdge(ctx context.Context, reply rpc.Replier, req rpc.Requester) error {
	var p createEdgeParams
	if err := json.Unmarshal(req.Params(), &p); err != nil {
		return reply(ctx, nil, errkit.NewProtocolError("create_edge: malformed params: %v", err))
	}

	from, ok := autodiff.Nodes.Get(p.FromNodeID)
	if !ok {
		return reply(ctx, nil, errkit.NewLookupError("node", p.FromNodeID))
	}

	var to *autodiff.Node
	if p.ToNodeID != nil && *p.ToNodeID != "" {
		to, ok = autodiff.Nodes.Get(*p.ToNodeID)
		if !ok {
			return reply(ctx, nil, errkit.NewLookupError("node", *p.ToNodeID))
		}
	}

	autodiff.WithSuppression(func() {
		from.AppendEdge(autodiff.GradientEdge{Node: to, OutputNr: p.OutputNr})
	})
	return reply(ctx, errkit.OkResult(), nil)
}

func handleClearPendingGrad(ctx context.Context, reply rpc.Replier, req rpc.Requester) error {
	var ids []string
	if err := json.Unmarshal(req.Params(), &ids); err != nil {
		return reply(ctx, nil, errkit.NewProtocolError("clear_pending_grad: malformed params: %v", err))
	}

	var applyErr error
	autodiff.WithSuppression(func() {
		for _, id := range ids {
			v, err := autodiff.Variables.MustGet(id)
			if err != nil {
				applyErr = err
				return
			}
			v.ClearPendingGrad()
		}
	})
	if applyErr != nil {
		return reply(ctx, nil, applyErr)
	}
	return reply(ctx, errkit.OkResult(), nil)
}

func handleClearPendingData(ctx context.Context, reply rpc.Replier, req rpc.Requester) error {
	var ids []string
	if err := json.Unmarshal(req.Params(), &ids); err != nil {
		return reply(ctx, nil, errkit.NewProtocolError("clear_pending_data: malformed params: %v", err))
	}

	var applyErr error
	autodiff.WithSuppression(func() {
		for _, id := range ids {
			v, err := autodiff.Variables.MustGet(id)
			if err != nil {
				applyErr = err
				return
			}
			v.ClearPendingData()
		}
	})
	if applyErr != nil {
		return reply(ctx, nil, applyErr)
	}
	return reply(ctx, errkit.OkResult(), nil)
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

func boolOr(v interface{}, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toInterfaceMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
