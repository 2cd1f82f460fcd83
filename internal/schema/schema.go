// Where: internal/schema/schema.go
// What: JSON-schema registration and validation of the service document.
// Why: Plugins define their top-level sections; the whole document is re-validated after synthesis.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"

	"github.com/hybridless/hybridless/internal/errs"
)

//go:embed options.schema.json
var optionsSchema []byte

//go:embed service.schema.json
var serviceSchema []byte

const serviceURL = "service.schema.json"

// Options returns a fresh copy of the hybridless section schema.
func Options() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(optionsSchema, &out); err != nil {
		return nil, fmt.Errorf("decode options schema: %w", err)
	}
	return out, nil
}

// Registry holds the base service schema plus the top-level properties
// plugins define. The compiled schema is rebuilt after each definition.
type Registry struct {
	mu         sync.Mutex
	properties map[string][]byte
	compiled   *jsonschema.Schema
}

// NewRegistry returns a registry with only the base service schema.
func NewRegistry() *Registry {
	return &Registry{properties: map[string][]byte{}}
}

// DefineTopLevelProperty registers the schema of a top-level section.
func (r *Registry) DefineTopLevelProperty(name string, schema map[string]any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return errs.Wrap(errs.ConfigInvalid, "schema.Define", fmt.Errorf("encode %s schema: %w", name, err))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[name] = raw
	r.compiled = nil
	return nil
}

// Defined lists the registered property names.
func (r *Registry) Defined() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.properties))
	for name := range r.properties {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateConfig validates doc against the service schema.
func (r *Registry) ValidateConfig(doc map[string]any) error {
	const op = "schema.ValidateConfig"
	sch, err := r.schema()
	if err != nil {
		return errs.Wrap(errs.SchemaValidation, op, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return errs.Wrap(errs.SchemaValidation, op, fmt.Errorf("encode document: %w", err))
	}
	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return errs.Wrap(errs.SchemaValidation, op, fmt.Errorf("decode document: %w", err))
	}
	if err := sch.Validate(document); err != nil {
		return errs.Wrap(errs.SchemaValidation, op, err)
	}
	return nil
}

// ValidateYAML converts content to JSON, validates it, and returns the
// decoded document.
func (r *Registry) ValidateYAML(content []byte) (map[string]any, error) {
	jsonData, err := yaml.YAMLToJSON(content)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, "schema.ValidateYAML", fmt.Errorf("convert yaml to json: %w", err))
	}
	var doc map[string]any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, "schema.ValidateYAML", fmt.Errorf("decode json: %w", err))
	}
	if err := r.ValidateConfig(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Registry) schema() (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.compiled != nil {
		return r.compiled, nil
	}
	var base map[string]any
	if err := json.Unmarshal(serviceSchema, &base); err != nil {
		return nil, fmt.Errorf("decode service schema: %w", err)
	}
	props, _ := base["properties"].(map[string]any)
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	for name, raw := range r.properties {
		url := name + ".schema.json"
		if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", name, err)
		}
		props[name] = map[string]any{"$ref": url}
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("encode service schema: %w", err)
	}
	if err := compiler.AddResource(serviceURL, bytes.NewReader(merged)); err != nil {
		return nil, fmt.Errorf("add service schema: %w", err)
	}
	compiled, err := compiler.Compile(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("compile service schema: %w", err)
	}
	r.compiled = compiled
	return compiled, nil
}
