package launch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaDocument is the minimum shape an existing launch file must have for
// rdebug to merge into it. Anything else in the file is left alone.
type schemaDocument struct {
	Version        string        `json:"version,omitempty"`
	Configurations []schemaEntry `json:"configurations,omitempty"`
	Inputs         []schemaInput `json:"inputs,omitempty"`
}

type schemaEntry struct {
	Name string `json:"name" jsonschema:"minLength=1"`
}

type schemaInput struct {
	ID string `json:"id" jsonschema:"minLength=1"`
}

var (
	compileOnce    sync.Once
	compiledSchema *santhosh.Schema
	compileErr     error
)

// Schema returns the JSON schema existing launch files are checked against.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		DoNotReference:            true,
	}
	s := r.Reflect(&schemaDocument{})
	s.Title = "rdebug launch document"
	return json.MarshalIndent(s, "", "  ")
}

func validator() (*santhosh.Schema, error) {
	compileOnce.Do(func() {
		data, err := Schema()
		if err != nil {
			compileErr = err
			return
		}
		compiler := santhosh.NewCompiler()
		if err := compiler.AddResource("launch.json", bytes.NewReader(data)); err != nil {
			compileErr = fmt.Errorf("failed to add launch schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("launch.json")
	})
	return compiledSchema, compileErr
}

// validate checks decoded JSON against Schema.
func validate(doc interface{}) error {
	sch, err := validator()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		if verr, ok := err.(*santhosh.ValidationError); ok {
			var messages []string
			collectErrors(verr, &messages)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(messages, "\n"))
		}
		return err
	}
	return nil
}

// collectErrors flattens a validation tree. The root wrapper only says the
// document failed, so it is skipped unless it is the sole error.
func collectErrors(err *santhosh.ValidationError, messages *[]string) {
	location := err.InstanceLocation
	if location == "" {
		location = "/"
	}
	if err.InstanceLocation != "" || len(err.Causes) == 0 {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", location, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
