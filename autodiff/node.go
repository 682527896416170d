// Package autodiff implements the mirrored entity model of spec.md §4.3:
// Variable, Parameter and Node, the suppression flag and grad-fn-assignment
// gate that govern whether a local mutation is forwarded to the server, and
// the Function.apply protocol. Grounded on afnio/autodiff/graph.py,
// afnio/_variable.py (via its call sites) and afnio/autodiff/function.py.
package autodiff

import "fmt"

// GradientEdge is an outgoing edge of a Node toward the Node that will
// compute the gradient of one of this Node's inputs, labeled with the
// output index that edge corresponds to. Edges are append-only during a
// forward pass; the append is always initiated by the server.
type GradientEdge struct {
	Node     *Node
	OutputNr int
}

func (e GradientEdge) String() string {
	if e.Node == nil {
		return fmt.Sprintf("(<nil>, %d)", e.OutputNr)
	}
	return fmt.Sprintf("(<Node %s>, %d)", e.Node.NodeID, e.OutputNr)
}

// Node is a vertex in the backward graph, mirroring the server's autodiff
// graph node. next_functions is append-only and populated exclusively by
// create_edge notifications from the server (spec.md §4.6).
type Node struct {
	NodeID string
	name   string

	nextFunctions []GradientEdge
}

// NewNode constructs a Node for the given server-assigned id and name. Used
// by the create_node inbound handler (spec.md §4.6).
func NewNode(nodeID, name string) *Node {
	return &Node{NodeID: nodeID, name: name}
}

// Name returns the node's human label, e.g. "AddBackward".
func (n *Node) Name() string { return n.name }

// NextFunctions returns the node's outgoing edges.
func (n *Node) NextFunctions() []GradientEdge {
	out := make([]GradientEdge, len(n.nextFunctions))
	copy(out, n.nextFunctions)
	return out
}

// AppendEdge appends e to the node's next_functions. Only called by the
// create_edge inbound handler.
func (n *Node) AppendEdge(e GradientEdge) {
	n.nextFunctions = append(n.nextFunctions, e)
}
