// Package tools defines the canonical device-control tool catalog and a
// JSON-schema-backed registry, grounded on runtime/agent/tools.ToolSpec but
// trimmed to mobile-use's fixed set of device actions (spec.md §4.6): this
// registry has no Goa-service/toolset namespacing or agent-as-tool
// indirection, since mobile-use tools are not independently deployable
// services.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Spec describes a single tool's name, natural-language description, and
// JSON Schema for its arguments, used both to advertise tool definitions to
// an llm.Client and to validate arguments before dispatch.
type Spec struct {
	Name        string
	Description string
	Schema      []byte // raw JSON Schema document
}

// Registry holds the compiled schemas for the canonical tool set and
// validates arguments before execution (SPEC_FULL.md "toolexec" component).
type Registry struct {
	mu      sync.RWMutex
	specs   map[string]Spec
	schemas map[string]*jsonschema.Schema
}

// NewRegistry compiles the given specs eagerly, failing fast on any
// malformed schema.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{
		specs:   make(map[string]Spec, len(specs)),
		schemas: make(map[string]*jsonschema.Schema, len(specs)),
	}
	compiler := jsonschema.NewCompiler()
	for _, spec := range specs {
		if err := r.register(compiler, spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(compiler *jsonschema.Compiler, spec Spec) error {
	url := "mem://tools/" + spec.Name + ".json"
	var doc any
	if err := json.Unmarshal(spec.Schema, &doc); err != nil {
		return fmt.Errorf("tools: decode schema for %q: %w", spec.Name, err)
	}
	if err := compiler.AddResource(url, doc); err != nil {
		return fmt.Errorf("tools: add schema resource for %q: %w", spec.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("tools: compile schema for %q: %w", spec.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
	r.schemas[spec.Name] = schema
	return nil
}

// Specs returns every registered tool spec, stable-ordered by name for
// deterministic prompt construction.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks decoded JSON arguments against the named tool's schema.
func (r *Registry) Validate(ctx context.Context, name string, args any) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("tools: unknown tool %q", name)
	}
	if err := schema.Validate(args); err != nil {
		return fmt.Errorf("tools: %q arguments invalid: %w", name, err)
	}
	return nil
}
