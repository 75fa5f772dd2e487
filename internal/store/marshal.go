package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/routine/internal/ir"
)

// marshalValue converts a Value to JSON TEXT for storage. Strings are kept
// byte for byte so replay sees the values the engine applied.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalExact(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// marshalOptional maps an absent value to SQL NULL, so absent and explicit
// null survive a round trip as different values.
func marshalOptional(v ir.Value) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalValue(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// marshalPayload converts a payload to canonical JSON. A nil payload is "[]".
func marshalPayload(payload ir.Array) (string, error) {
	if payload == nil {
		payload = ir.Array{}
	}
	return marshalValue(payload)
}

func unmarshalOptional(ns sql.NullString) (ir.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return ir.UnmarshalValue([]byte(ns.String))
}

func unmarshalPayload(data string) (ir.Array, error) {
	if data == "" || data == "[]" {
		return ir.Array{}, nil
	}
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, fmt.Errorf("unmarshal payload: want array, got %s", ir.TypeName(v))
	}
	return arr, nil
}

func unmarshalKeyPath(data string) (ir.KeyPath, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal key path: %w", err)
	}
	return ir.KeyPathFromValue(v)
}

// nullIfEmpty stores the empty invocation id of Clear events as NULL so
// the foreign key does not apply.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
