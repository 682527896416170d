package errkit_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellurio-ai/tellurio-go/errkit"
)

func TestErrorKindsUnwrapToCause(t *testing.T) {
	cause := errors.New("boom")

	t.Run("ConnectError", func(t *testing.T) {
		err := errkit.NewConnectError(3, cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 3, err.Retries)
	})

	t.Run("LookupError", func(t *testing.T) {
		err := errkit.NewLookupError("variable", "missing-id")
		assert.Equal(t, "variable", err.Registry)
		assert.Equal(t, "missing-id", err.ID)
	})

	t.Run("TimeoutError", func(t *testing.T) {
		err := errkit.NewTimeoutError("run_function", cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "run_function", err.Method)
	})
}

func TestIsOk(t *testing.T) {
	assert.True(t, errkit.IsOk(errkit.OkResult()))
	assert.False(t, errkit.IsOk(map[string]string{"message": "Nope"}))
	assert.False(t, errkit.IsOk(nil))
}

func TestErrorsAsDownToSpecificKind(t *testing.T) {
	var err error = errkit.NewInvariantError("setting grad_fn outside the gate")

	var invariant *errkit.InvariantError
	require.True(t, errors.As(err, &invariant))
}
