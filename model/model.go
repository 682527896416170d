// Package model implements the Model handle of spec.md §3: an opaque
// model_id plus client-side configuration, with no state mirrored beyond
// identity. Grounded on afnio.models.ChatCompletionModel as referenced by
// afnio/_utils.py's _serialize_arg.
package model

import (
	"github.com/tellurio-ai/tellurio-go/registry"
	"github.com/tellurio-ai/tellurio-go/wire"
)

// Handles is the process-wide model registry keyed by server-assigned
// model_id (spec.md §4.2).
var Handles = registry.New[*Handle]("model")

// Handle is a ChatCompletionModel handle: identity plus the options it was
// constructed with. No further state is mirrored from the server.
type Handle struct {
	ModelID string
	APIKey  string
	Options map[string]interface{}
}

// NewHandle wraps a server-assigned model id and registers it.
func NewHandle(modelID, apiKey string, options map[string]interface{}) *Handle {
	h := &Handle{ModelID: modelID, APIKey: apiKey, Options: options}
	Handles.Register(modelID, h)
	return h
}

// WireTag implements wire.Encodable.
func (h *Handle) WireTag() (tag, id string) { return wire.TagModelClient, h.ModelID }
