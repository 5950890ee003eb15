package scenario

import (
	_ "embed"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schema []byte

// ErrInvalid is matched by every schema violation.
var ErrInvalid = errors.New("scenario: invalid")

// Validate checks a YAML scenario against the schema.
func Validate(data []byte) error {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileBytes(schema, cue.Filename("schema.cue"))
	if schemaVal.Err() != nil {
		return fmt.Errorf("scenario: compiling schema: %w", schemaVal.Err())
	}

	file, err := cueyaml.Extract("scenario.yaml", data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err)
	}

	configVal := ctx.BuildFile(file)
	if configVal.Err() != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, configVal.Err())
	}

	final := schemaVal.LookupPath(cue.ParsePath("#Scenario")).Unify(configVal)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}

	return nil
}
