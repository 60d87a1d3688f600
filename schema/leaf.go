// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/z5labs/apiguard/concurrent"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Compiled validators keyed by the JSON Schema document they were built from.
var leafValidators = concurrent.NewCache[string, *jsonschema.Schema]()

var printer = message.NewPrinter(language.English)

// checkLeaf validates v against the constraints of the leaf schema s
// by compiling its JSON Schema export.
func checkLeaf(s Schema, v any) error {
	validator, err := compileLeaf(s)
	if err != nil {
		return err
	}

	err = validator.Validate(v)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &ValidationError{Message: err.Error(), Cause: err}
	}
	return &ValidationError{Message: leafMessage(verr), Cause: err}
}

func compileLeaf(s Schema) (*jsonschema.Schema, error) {
	js, err := JSONSchema(s)
	if err != nil {
		return nil, err
	}

	doc, err := json.Marshal(js)
	if err != nil {
		return nil, err
	}

	return leafValidators.GetOr(string(doc), func() (*jsonschema.Schema, error) {
		v, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
		if err != nil {
			return nil, err
		}

		c := jsonschema.NewCompiler()
		err = c.AddResource("leaf.json", v)
		if err != nil {
			return nil, err
		}

		sch, err := c.Compile("leaf.json")
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", doc, err)
		}
		return sch, nil
	})
}

// leafMessage reports the innermost cause of verr.
func leafMessage(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	return verr.ErrorKind.LocalizedString(printer)
}
