package autodiff

import (
	"context"

	"github.com/tellurio-ai/tellurio-go/registry"
	"github.com/tellurio-ai/tellurio-go/rpc"
)

// Variables, Nodes and PendingGradFn are the process-wide registries
// spec.md §4.2 names: independent keyed maps plus the pending-grad-fn
// bookkeeping for out-of-order delivery. They are package-level, mirroring
// the module-level dicts of _variable_registry.py / _node_registry.py: the
// synchronization runtime has exactly one of each per process.
var (
	Variables     = registry.New[*Variable]("variable")
	Nodes         = registry.New[*Node]("node")
	PendingGradFn = registry.NewPendingGradFn[*Variable]()
)

// Caller is the subset of rpc.Conn the autodiff package needs to forward
// governed attribute writes and function applications to the server. It is
// satisfied directly by *rpc's Conn.
type Caller interface {
	Call(ctx context.Context, method string, params, result interface{}) (rpc.ID, error)
	Notify(ctx context.Context, method string, params interface{}) error
}
