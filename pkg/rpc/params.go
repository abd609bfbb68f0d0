package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

var nullJSON = []byte("null")

// decodeParams assigns positional params to the fields of req in declaration
// order. Pointer fields are optional; every other field must be present and
// non-null.
func decodeParams(raw json.RawMessage, req interface{}) error {
	v := reflect.ValueOf(req)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("cannot decode params into %T", req)
	}
	v = v.Elem()

	args, err := splitParams(raw)
	if err != nil {
		return err
	}
	if len(args) > v.NumField() {
		return fmt.Errorf("too many arguments, want at most %d", v.NumField())
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		optional := field.Kind() == reflect.Ptr

		if i >= len(args) || bytes.Equal(bytes.TrimSpace(args[i]), nullJSON) {
			if !optional {
				return fmt.Errorf("missing value for required argument %d", i)
			}
			continue
		}
		if err := json.Unmarshal(args[i], field.Addr().Interface()); err != nil {
			return fmt.Errorf("invalid argument %d: %v", i, err)
		}
	}
	return nil
}

// splitParams returns the positional arguments of a request. Absent or null
// params mean no arguments; a non-array value is a single argument.
func splitParams(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, nullJSON) {
		return nil, nil
	}
	if raw[0] != '[' {
		return []json.RawMessage{raw}, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("non-array args: %v", err)
	}
	return args, nil
}
