package autodiff

import (
	"context"

	"github.com/tellurio-ai/tellurio-go/wire"
)

// Parameter is a Variable specialisation marking a trainable leaf
// (spec.md §3: "on the wire, it is distinguished by tag only"). It embeds
// *Variable so every governed setter is inherited unchanged; only WireTag is
// overridden.
type Parameter struct {
	*Variable
}

// WireTag implements wire.Encodable, shadowing Variable's.
func (p *Parameter) WireTag() (tag, id string) { return wire.TagParameter, p.VariableID() }

// NewParameter constructs a Parameter, issuing the same create_variable RPC
// NewVariable does; the server distinguishes it by the __parameter__ tag on
// subsequent encodes, not by a different creation call.
func NewParameter(ctx context.Context, conn Caller, data interface{}, role string) (*Parameter, error) {
	v, err := NewVariable(ctx, conn, data, role, true)
	if err != nil {
		return nil, err
	}
	return &Parameter{Variable: v}, nil
}
