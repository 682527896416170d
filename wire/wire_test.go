package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellurio-ai/tellurio-go/wire"
)

type fakeEncodable struct {
	tag, id string
}

func (f fakeEncodable) WireTag() (string, string) { return f.tag, f.id }

type fakeRegistrar struct {
	registered map[string]interface{}
}

func (r *fakeRegistrar) RegisterCallable(id string, fn interface{}) {
	if r.registered == nil {
		r.registered = map[string]interface{}{}
	}
	r.registered[id] = fn
}

func TestEncodePrimitivesAreIdentity(t *testing.T) {
	for _, v := range []interface{}{nil, "s", 1, int64(2), 3.5, true} {
		got, err := wire.Encode(v, nil)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestEncodeEncodableProducesTaggedID(t *testing.T) {
	got, err := wire.Encode(fakeEncodable{tag: wire.TagVariable, id: "v-1"}, nil)
	require.NoError(t, err)
	m, ok := got.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, m[wire.TagVariable])
	assert.Equal(t, "v-1", m["variable_id"])
}

func TestEncodeModelClientUsesModelIDKey(t *testing.T) {
	got, err := wire.Encode(fakeEncodable{tag: wire.TagModelClient, id: "m-1"}, nil)
	require.NoError(t, err)
	m := got.(map[string]interface{})
	assert.Equal(t, "m-1", m["model_id"])
}

func TestEncodeListAndMapRecurse(t *testing.T) {
	arg := []interface{}{
		fakeEncodable{tag: wire.TagVariable, id: "v-2"},
		map[string]interface{}{"nested": fakeEncodable{tag: wire.TagParameter, id: "p-1"}},
	}
	got, err := wire.Encode(arg, nil)
	require.NoError(t, err)

	list := got.([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, "v-2", list[0].(map[string]interface{})["variable_id"])

	nested := list[1].(map[string]interface{})["nested"].(map[string]interface{})
	assert.Equal(t, "p-1", nested["variable_id"])
}

func TestEncodeFuncRegistersCallable(t *testing.T) {
	reg := &fakeRegistrar{}
	fn := func() {}

	got, err := wire.Encode(fn, reg)
	require.NoError(t, err)

	m := got.(map[string]interface{})
	assert.Equal(t, true, m[wire.TagCallable])
	id, ok := m["callable_id"].(string)
	require.True(t, ok)
	assert.Contains(t, reg.registered, id)
}

func TestEncodeFuncWithoutRegistrarFails(t *testing.T) {
	_, err := wire.Encode(func() {}, nil)
	require.Error(t, err)
}

func TestEncodeUnsupportedTypeFails(t *testing.T) {
	_, err := wire.Encode(struct{ X int }{X: 1}, nil)
	require.Error(t, err)
}
