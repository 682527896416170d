// Package wire implements the encoding half of the recursive tagged
// serialization boundary of spec.md §4.4: the encoder that turns RPC
// arguments into wire form, grounded on afnio/_utils.py's _serialize_arg.
// The decoder, which needs the entity registries, lives in the autodiff
// package (DecodeArg, DecodeOutput).
package wire

import (
	"github.com/google/uuid"

	"github.com/tellurio-ai/tellurio-go/errkit"
)

// Tags recognized on the wire. spec.md §6: "exactly the four tags of §4.4;
// no other metatags are recognized."
const (
	TagParameter   = "__parameter__"
	TagVariable    = "__variable__"
	TagModelClient = "__model_client__"
	TagCallable    = "__callable__"
)

// Encodable is implemented by every mirrored entity the encoder knows how to
// tag. autodiff.Variable, autodiff.Parameter and model.Handle all implement
// this.
type Encodable interface {
	// WireTag returns this value's wire tag and the opaque id to carry
	// alongside it.
	WireTag() (tag, id string)
}

// CallableRegistrar registers an arbitrary callable under a freshly minted
// id so the server may later invoke it via a reverse RPC (spec.md §9,
// "callable passing"). The reverse-call protocol itself is out of scope;
// this interface only covers registration at encode time.
type CallableRegistrar interface {
	RegisterCallable(id string, fn interface{})
}

// Encode recursively converts arg into wire form following spec.md §4.4:
//   - Encodable (Parameter/Variable/Model handle) -> {tag:true, id-field:id}
//   - []interface{} -> element-wise, preserving order
//   - map[string]interface{} -> key-preserving over encoded values
//   - string, int, float64, bool, nil -> identity
//   - a plain func value, when registrar is non-nil -> registered as a
//     callable and tagged
//   - anything else -> errkit.TypeError
func Encode(arg interface{}, registrar CallableRegistrar) (interface{}, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case string, int, int64, float64, bool:
		return v, nil
	case Encodable:
		tag, id := v.WireTag()
		return taggedID(tag, id), nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, el := range v {
			enc, err := Encode(el, registrar)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, el := range v {
			enc, err := Encode(el, registrar)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	}

	if fn, ok := asCallable(arg); ok && registrar != nil {
		id := uuid.NewString()
		registrar.RegisterCallable(id, fn)
		return taggedID(TagCallable, id), nil
	}

	return nil, errkit.NewTypeError("cannot encode value of type %T", arg)
}

func taggedID(tag, idField string) map[string]interface{} {
	idKey := "variable_id"
	switch tag {
	case TagModelClient:
		idKey = "model_id"
	case TagCallable:
		idKey = "callable_id"
	}
	return map[string]interface{}{tag: true, idKey: idField}
}
