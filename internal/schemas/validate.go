// Package schemas holds the embedded JSON Schemas for parser output and
// normalized CV drafts.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Embedded schema names
const (
	// CVSignal gates parsing output, once field aliases are resolved to canonical keys
	CVSignal = "cv_signal.schema.json"
	// CVState describes a complete normalized CV draft
	CVState = "cv_state.schema.json"
)

//go:embed *.schema.json
var schemaFiles embed.FS

// compiled schemas, each built on first use
var compiled = map[string]func() (*gojsonschema.Schema, error){
	CVSignal: compileOnce(CVSignal),
	CVState:  compileOnce(CVState),
}

func compileOnce(name string) func() (*gojsonschema.Schema, error) {
	return sync.OnceValues(func() (*gojsonschema.Schema, error) {
		data, err := schemaFiles.ReadFile(name)
		if err != nil {
			return nil, &SchemaLoadError{Path: name, Message: "schema not found", Cause: err}
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, &SchemaLoadError{Path: name, Message: "schema does not compile", Cause: err}
		}
		return s, nil
	})
}

// FieldError is one violation at a JSON path
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation found in a document
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("document does not match %s: %s", ve.Schema, strings.Join(msgs, "; "))
}

// SchemaLoadError means the schema itself, not the document, is at fault
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Validate checks a Go value (maps, slices, structs with json tags) against
// one of the embedded schemas
func Validate(name string, document any) error {
	get, ok := compiled[name]
	if !ok {
		return &SchemaLoadError{Path: name, Message: "schema not found"}
	}
	schema, err := get()
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return &SchemaLoadError{Path: name, Message: "document could not be loaded", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: name}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
