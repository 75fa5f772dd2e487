// Package manifest loads CUE operation manifests and binds them to callers.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/routine/internal/compiler"
	"github.com/roach88/routine/internal/ir"
)

// LoadDir compiles every *.cue file in dir, in file name order.
func LoadDir(dir string) ([]*ir.OperationDef, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("load manifests: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("load manifests: no .cue files in %s", dir)
	}
	sort.Strings(paths)
	return LoadFiles(paths...)
}

// LoadFiles compiles each file on its own and concatenates the operations.
// Cross-file conflicts are reported by Validate, not here.
func LoadFiles(paths ...string) ([]*ir.OperationDef, error) {
	ctx := cuecontext.New()

	defs := []*ir.OperationDef{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}

		v := ctx.CompileBytes(data, cue.Filename(path))
		fileDefs, err := compiler.CompileOperations(v)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

// Validate runs compiler validation and joins every error into one.
func Validate(defs []*ir.OperationDef) error {
	verrs := compiler.ValidateOperations(defs)
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, len(verrs))
	for i, e := range verrs {
		errs[i] = e
	}
	return errors.Join(errs...)
}
