package autodiff

import (
	"context"

	"github.com/tellurio-ai/tellurio-go/errkit"
	"github.com/tellurio-ai/tellurio-go/wire"
)

// Apply implements spec.md §4.5: it encodes args and kwargs, issues a single
// run_function RPC, and decodes the result.data of the response into either
// a single *Variable or a []interface{} of *Variable. functionName is the
// textual name of the operation class (e.g. "Add", "Split"), mirroring
// Function.apply's `cls.__name__`.
func Apply(ctx context.Context, conn Caller, functionName string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	encodedArgs := make([]interface{}, len(args))
	for i, a := range args {
		enc, err := wire.Encode(a, Callables)
		if err != nil {
			return nil, err
		}
		encodedArgs[i] = enc
	}

	encodedKwargs := make(map[string]interface{}, len(kwargs))
	for k, a := range kwargs {
		enc, err := wire.Encode(a, Callables)
		if err != nil {
			return nil, err
		}
		encodedKwargs[k] = enc
	}

	payload := map[string]interface{}{
		"function_name": functionName,
		"args":          encodedArgs,
		"kwargs":        encodedKwargs,
	}

	var response struct {
		Result struct {
			Data interface{} `json:"data"`
		} `json:"result"`
	}
	if _, err := conn.Call(ctx, "run_function", payload, &response); err != nil {
		return nil, err
	}
	if response.Result.Data == nil {
		return nil, errkit.NewProtocolError("run_function(%s) did not return result.data", functionName)
	}

	return DecodeOutput(response.Result.Data)
}
