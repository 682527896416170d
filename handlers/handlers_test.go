package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellurio-ai/tellurio-go/autodiff"
	"github.com/tellurio-ai/tellurio-go/handlers"
	"github.com/tellurio-ai/tellurio-go/rpc"
)

func newRequest(t *testing.T, method string, params interface{}) *rpc.Request {
	t.Helper()
	req, err := rpc.NewRequest(rpc.NewID("t-"+method), method, params)
	require.NoError(t, err)
	return req
}

func captureReply(t *testing.T) (rpc.Replier, func() (interface{}, error)) {
	t.Helper()
	var result interface{}
	var replyErr error
	called := false
	return func(ctx context.Context, res interface{}, err error) error {
			called = true
			result = res
			replyErr = err
			return nil
		}, func() (interface{}, error) {
			require.True(t, called, "handler never replied")
			return result, replyErr
		}
}

func TestHandleUpdateVariableField(t *testing.T) {
	v, err := autodiff.NewVariable(context.Background(), nil, "old", "role", false)
	require.NoError(t, err)
	v.SetVariableID("handlers-uv-1")
	autodiff.Variables.Register("handlers-uv-1", v)

	reply, result := captureReply(t)
	req := newRequest(t, "update_variable", map[string]interface{}{
		"variable_id": "handlers-uv-1",
		"field":       "data",
		"value":       "new",
	})

	require.NoError(t, handlers.Dispatch()(context.Background(), reply, req))
	res, rerr := result()
	require.NoError(t, rerr)
	assert.NotNil(t, res)
	assert.Equal(t, "new", v.Data())
}

func TestHandleCreateNodeDrainsPendingWaiters(t *testing.T) {
	_, err := autodiff.DecodeOutput(map[string]interface{}{
		"variable_id": "handlers-pg-1-out",
		"data":        "z",
		"_grad_fn":    "handlers-node-1",
	})
	require.NoError(t, err)

	reply, result := captureReply(t)
	req := newRequest(t, "create_node", map[string]interface{}{
		"name":    "AddBackward",
		"node_id": "handlers-node-1",
	})
	require.NoError(t, handlers.Dispatch()(context.Background(), reply, req))
	_, rerr := result()
	require.NoError(t, rerr)

	assert.False(t, autodiff.PendingGradFn.Has("handlers-node-1"))
}

func TestHandleCreateEdgeUnknownNodeFails(t *testing.T) {
	reply, result := captureReply(t)
	req := newRequest(t, "create_edge", map[string]interface{}{
		"from_node_id": "no-such-node",
		"to_node_id":   "also-missing",
		"output_nr":    0,
	})
	require.NoError(t, handlers.Dispatch()(context.Background(), reply, req))
	_, rerr := result()
	require.Error(t, rerr)
}

func TestHandleCreateEdgeWithNullToNodeBuildsNilEdge(t *testing.T) {
	from := autodiff.NewNode("handlers-edge-from", "AddBackward")
	autodiff.Nodes.Register("handlers-edge-from", from)

	reply, result := captureReply(t)
	req := newRequest(t, "create_edge", map[string]interface{}{
		"from_node_id": "handlers-edge-from",
		"to_node_id":   nil,
		"output_nr":    0,
	})
	require.NoError(t, handlers.Dispatch()(context.Background(), reply, req))
	_, rerr := result()
	require.NoError(t, rerr)

	edges := from.NextFunctions()
	require.Len(t, edges, 1)
	assert.Nil(t, edges[0].Node)
	assert.Equal(t, 0, edges[0].OutputNr)
}

func TestDispatchUnknownMethod(t *testing.T) {
	reply, result := captureReply(t)
	req := newRequest(t, "not_a_real_method", nil)
	require.NoError(t, handlers.Dispatch()(context.Background(), reply, req))
	_, rerr := result()
	require.Error(t, rerr)
}
