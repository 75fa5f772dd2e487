// Package compiler turns CUE operation manifests into ir.OperationDef.
//
// A manifest declares operations under the top-level "operation" struct:
//
//	operation: fetchTodos: {
//		prefix:      "todos/FETCH"
//		reducer_key: "todos.items"   // or ["todos", "items"]
//		transform:   "replace"
//		endpoint: {method: "GET", url: "/todos"}
//		on_success:  "countTodos"    // optional, operation name
//	}
package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/routine/internal/ir"
)

// CompileOperations compiles every field of the manifest's "operation"
// struct, in source order. A manifest without operations yields none.
func CompileOperations(v cue.Value) ([]*ir.OperationDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	opsVal := v.LookupPath(cue.ParsePath("operation"))
	if !opsVal.Exists() {
		return []*ir.OperationDef{}, nil
	}

	iter, err := opsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	defs := []*ir.OperationDef{}
	for iter.Next() {
		def, err := compileOperation(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// CompileOperation parses a CUE value into an OperationDef.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the operation struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`operation: fetchTodos: { ... }`)
//	def, err := CompileOperation(v.LookupPath(cue.ParsePath("operation.fetchTodos")))
func CompileOperation(v cue.Value) (*ir.OperationDef, error) {
	name := ""
	if labels := v.Path().Selectors(); len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}
	return compileOperation(name, v)
}

func compileOperation(name string, v cue.Value) (*ir.OperationDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &ir.OperationDef{Name: name}

	var err error
	if def.Prefix, err = requiredString(v, "prefix"); err != nil {
		return nil, err
	}
	if def.ID, err = optionalString(v, "id"); err != nil {
		return nil, err
	}
	if def.Transform, err = requiredString(v, "transform"); err != nil {
		return nil, err
	}
	if def.ReducerKey, err = parseReducerKey(v); err != nil {
		return nil, err
	}
	if def.Endpoint, err = parseEndpoint(v); err != nil {
		return nil, err
	}
	if def.OnSuccess, err = optionalString(v, "on_success"); err != nil {
		return nil, err
	}
	if def.OnFail, err = optionalString(v, "on_fail"); err != nil {
		return nil, err
	}

	return def, nil
}

// parseReducerKey accepts a dotted string or a list of strings.
func parseReducerKey(v cue.Value) (ir.KeyPath, error) {
	keyVal := v.LookupPath(cue.ParsePath("reducer_key"))
	if !keyVal.Exists() {
		return nil, &CompileError{
			Field:   "reducer_key",
			Message: "reducer_key is required",
			Pos:     v.Pos(),
		}
	}

	if s, err := keyVal.String(); err == nil {
		return ir.ParseKeyPath(s), nil
	}

	iter, err := keyVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "reducer_key",
			Message: "must be a dotted string or a list of strings",
			Pos:     keyVal.Pos(),
		}
	}

	path := ir.KeyPath{}
	for iter.Next() {
		seg, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "reducer_key",
				Message: "segments must be strings",
				Pos:     iter.Value().Pos(),
			}
		}
		path = append(path, seg)
	}
	return path, nil
}

func parseEndpoint(v cue.Value) (*ir.EndpointDef, error) {
	epVal := v.LookupPath(cue.ParsePath("endpoint"))
	if !epVal.Exists() {
		return nil, nil
	}

	method, err := optionalString(epVal, "method")
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = "GET"
	}

	url, err := requiredString(epVal, "url")
	if err != nil {
		return nil, err
	}

	ep := &ir.EndpointDef{Method: strings.ToUpper(method), URL: url, BodyArg: -1}

	bodyVal := epVal.LookupPath(cue.ParsePath("body_arg"))
	if bodyVal.Exists() {
		n, err := bodyVal.Int64()
		if err != nil {
			return nil, &CompileError{
				Field:   "endpoint.body_arg",
				Message: "must be an integer",
				Pos:     bodyVal.Pos(),
			}
		}
		ep.BodyArg = int(n)
	}

	return ep, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a string: %v", err),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	if !v.LookupPath(cue.ParsePath(field)).Exists() {
		return "", nil
	}
	return requiredString(v, field)
}
