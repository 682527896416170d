package autodiff

import (
	"github.com/tellurio-ai/tellurio-go/errkit"
	"github.com/tellurio-ai/tellurio-go/model"
	"github.com/tellurio-ai/tellurio-go/wire"
)

// Callables is the process-wide callable registry (spec.md §9, "callable
// passing"): a callable serialized by Encode is stored here under its
// freshly minted id so the reverse-call protocol, once defined, can invoke
// it.
var Callables = newCallableRegistry()

// RegisterCallable implements wire.CallableRegistrar.
func (r *callableRegistry) RegisterCallable(id string, fn interface{}) {
	r.reg.Register(id, fn)
}

// DecodeArg mirrors the reference-resolution half of the decoder (spec.md
// §4.4): a dict tagged __variable__/__parameter__/__model_client__ is
// resolved by registry lookup and fails with LookupError if missing; a
// sequence decodes element-wise; primitives pass through unchanged; a full
// Variable payload (carrying both variable_id and data) is handled by
// DecodeOutput instead, since only the Function.apply response shape uses
// that richer form.
func DecodeArg(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case nil, string, bool, float64, int, int64:
		return v, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, el := range v {
			dec, err := DecodeArg(el)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	case map[string]interface{}:
		if tagged, ok := v[wire.TagVariable]; ok && tagged == true {
			id, _ := v["variable_id"].(string)
			return Variables.MustGet(id)
		}
		if tagged, ok := v[wire.TagParameter]; ok && tagged == true {
			id, _ := v["variable_id"].(string)
			vr, err := Variables.MustGet(id)
			if err != nil {
				return nil, err
			}
			return &Parameter{Variable: vr}, nil
		}
		if tagged, ok := v[wire.TagModelClient]; ok && tagged == true {
			id, _ := v["model_id"].(string)
			h, ok := model.Handles.Get(id)
			if !ok {
				return nil, errkit.NewLookupError("model", id)
			}
			return h, nil
		}
		out := make(map[string]interface{}, len(v))
		for k, el := range v {
			dec, err := DecodeArg(el)
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil
	default:
		return nil, errkit.NewTypeError("cannot decode value of type %T", raw)
	}
}

// DecodeOutput mirrors deserialize_output / _deserialize_output: a dict
// carrying both variable_id and data is a full Variable payload, built and
// registered under suppression; a list decodes element-wise into a tuple of
// Variables; anything else fails with TypeError.
func DecodeOutput(obj interface{}) (interface{}, error) {
	switch v := obj.(type) {
	case map[string]interface{}:
		_, hasID := v["variable_id"]
		_, hasData := v["data"]
		if !hasID || !hasData {
			return nil, errkit.NewTypeError("deserialization only supports Variable or []Variable, got incomplete map")
		}
		return decodeVariablePayload(v)

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, el := range v {
			dec, err := DecodeOutput(el)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil

	default:
		return nil, errkit.NewTypeError("deserialization only supports Variable or []Variable, but got %T", obj)
	}
}

func decodeVariablePayload(payload map[string]interface{}) (*Variable, error) {
	var v *Variable
	WithSuppression(func() {
		role, _ := payload["role"].(string)
		requiresGrad, _ := payload["requires_grad"].(bool)
		v = newBareVariable(payload["data"], role, requiresGrad)

		if rg, ok := payload["_retain_grad"].(bool); ok {
			v.retainGrad = rg
		}
		if grad, ok := payload["_grad"].([]interface{}); ok {
			v.grad = decodeGradEntries(grad)
		}
		if outputNr, ok := asInt(payload["_output_nr"]); ok {
			v.outputNr = outputNr
		}

		gradFnID, _ := payload["_grad_fn"].(string)
		if gradFnID != "" {
			if node, ok := Nodes.Get(gradFnID); ok {
				WithGradFnGate(func() { v.setGradFnLocal(node) })
			} else {
				v.setPendingGradFnID(gradFnID)
				PendingGradFn.Enqueue(gradFnID, v)
			}
		}

		if isLeaf, ok := payload["is_leaf"].(bool); ok {
			v.isLeaf = isLeaf
		}
	})

	variableID, _ := payload["variable_id"].(string)
	v.SetVariableID(variableID)
	v.initialized = true
	Variables.Register(variableID, v)
	return v, nil
}

// DecodeGradEntries reconstructs a `grad` list from the wire, for use by the
// update_variable inbound handler as well as decodeVariablePayload above.
// Each entry is itself a nested Variable payload (mirroring
// update_local_variable_field's `[Variable(**g) for g in value]`).
func DecodeGradEntries(entries []interface{}) []*Variable {
	return decodeGradEntries(entries)
}

func decodeGradEntries(entries []interface{}) []*Variable {
	out := make([]*Variable, 0, len(entries))
	for _, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		v, err := decodeVariablePayload(entry)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
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
