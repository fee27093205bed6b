// Package llm provides a provider-agnostic interface for structured
// language-model extraction. Each request carries a JSON schema; the
// provider forces the model to answer through it so responses parse
// into typed fields instead of free text.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/doctrove/enrich-cli/internal/resilience"
)

// Provider defines the model operations used by the enrichment stages.
type Provider interface {
	// Complete runs a single structured extraction and returns the
	// fields the model produced, validated against the request schema.
	Complete(ctx context.Context, req StructuredRequest) (*StructuredResponse, error)
}

// StructuredRequest is one extraction call.
type StructuredRequest struct {
	Stage       string
	Model       string
	MaxTokens   int64
	System      string
	Prompt      string
	Schema      Schema
	Temperature *float64
}

// Schema describes the JSON object the model must produce.
type Schema struct {
	Name        string
	Description string
	Properties  map[string]Property
	Required    []string
}

// Property is a single schema field. Object properties carry their own
// nested Properties and Required lists.
type Property struct {
	Type        string // "string", "number", "integer", "boolean", "array", "object"
	Description string
	Enum        []string
	Items       *Property
	Properties  map[string]Property
	Required    []string
}

// Validate checks fields against the schema: every required field must
// be present and every present field must match its declared type.
// Failures are ValidationErrors and are never retried.
func (s Schema) Validate(fields map[string]any) error {
	for _, name := range s.Required {
		if _, ok := fields[name]; !ok {
			return resilience.NewValidationError("llm: schema %s: missing required field %q", s.Name, name)
		}
	}
	for name, value := range fields {
		prop, ok := s.Properties[name]
		if !ok {
			continue // extra fields are tolerated, callers ignore them
		}
		if value == nil {
			continue
		}
		if err := prop.check(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (p Property) check(name string, value any) error {
	switch p.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return resilience.NewValidationError("llm: field %q: expected string, got %T", name, value)
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return resilience.NewValidationError("llm: field %q: %q not in enum [%s]", name, s, strings.Join(p.Enum, ", "))
		}
	case "number", "integer":
		// JSON numbers decode as float64.
		if _, ok := value.(float64); !ok {
			return resilience.NewValidationError("llm: field %q: expected %s, got %T", name, p.Type, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return resilience.NewValidationError("llm: field %q: expected boolean, got %T", name, value)
		}
	case "array":
		items, ok := value.([]any)
		if !ok {
			return resilience.NewValidationError("llm: field %q: expected array, got %T", name, value)
		}
		if p.Items != nil {
			for i, item := range items {
				if err := p.Items.check(fmt.Sprintf("%s[%d]", name, i), item); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return resilience.NewValidationError("llm: field %q: expected object, got %T", name, value)
		}
		for _, req := range p.Required {
			if _, ok := obj[req]; !ok {
				return resilience.NewValidationError("llm: field %q: missing required field %q", name, req)
			}
		}
		for k, v := range obj {
			nested, ok := p.Properties[k]
			if !ok || v == nil {
				continue
			}
			if err := nested.check(name+"."+k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// StructuredResponse is the validated output of one extraction call.
type StructuredResponse struct {
	Fields map[string]any
	Model  string
	Usage  TokenUsage
	Cost   float64
}

// TokenUsage tracks token consumption for one call.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// String extracts a string field, returning "" when absent or mistyped.
func (r *StructuredResponse) String(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

// StringSlice extracts an array-of-strings field.
func (r *StructuredResponse) StringSlice(name string) []string {
	raw, ok := r.Fields[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Float extracts a numeric field, returning 0 when absent or mistyped.
func (r *StructuredResponse) Float(name string) float64 {
	f, _ := r.Fields[name].(float64)
	return f
}
