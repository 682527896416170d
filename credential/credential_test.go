package credential_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/tellurio-ai/tellurio-go/credential"
)

func TestStoreSetGetDelete(t *testing.T) {
	keyring.MockInit()
	store := credential.NewStore("tellurio-test")

	v, err := store.Get()
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, store.Set("secret-key"))

	v, err = store.Get()
	require.NoError(t, err)
	assert.Equal(t, "secret-key", v)

	require.NoError(t, store.Delete())
	v, err = store.Get()
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestStoreDeleteMissingIsNotAnError(t *testing.T) {
	keyring.MockInit()
	store := credential.NewStore("tellurio-test-missing")
	require.NoError(t, store.Delete())
}
