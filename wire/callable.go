package wire

import "reflect"

// asCallable reports whether v is a Go function value, the rough analogue of
// Python's callable(arg) check in _serialize_arg for values that are none of
// the recognized entity types.
func asCallable(v interface{}) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func {
		return v, true
	}
	return nil, false
}
