package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctrove/enrich-cli/internal/resilience"
)

var titleSchema = Schema{
	Name:        "record_title",
	Description: "Record the extracted document title",
	Properties: map[string]Property{
		"title":      {Type: "string", Description: "Concise document title"},
		"confidence": {Type: "number"},
	},
	Required: []string{"title"},
}

func toolUseResponse(t *testing.T, toolName string, input map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		choice, _ := body["tool_choice"].(map[string]any)
		assert.Equal(t, "tool", choice["type"])
		assert.Equal(t, toolName, choice["name"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "tool_use", "id": "toolu_01", "name": toolName, "input": input},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "tool_use",
			"usage": map[string]any{
				"input_tokens":                1200,
				"output_tokens":               40,
				"cache_creation_input_tokens": 0,
				"cache_read_input_tokens":     0,
			},
		})
	}
}

func TestComplete_StructuredOutput(t *testing.T) {
	ts := httptest.NewServer(toolUseResponse(t, "record_title", map[string]any{
		"title":      "Invoice 2024-118 from Stadtwerke",
		"confidence": 0.92,
	}))
	defer ts.Close()

	p := NewAnthropic("test-key", WithBaseURL(ts.URL))
	resp, err := p.Complete(context.Background(), StructuredRequest{
		Stage:     "title",
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 512,
		Prompt:    "Extract the title.",
		Schema:    titleSchema,
	})

	require.NoError(t, err)
	assert.Equal(t, "Invoice 2024-118 from Stadtwerke", resp.String("title"))
	assert.InDelta(t, 0.92, resp.Float("confidence"), 1e-9)
	assert.Equal(t, int64(1200), resp.Usage.InputTokens)
	assert.Greater(t, resp.Cost, 0.0)
}

func TestComplete_MissingRequiredField(t *testing.T) {
	ts := httptest.NewServer(toolUseResponse(t, "record_title", map[string]any{
		"confidence": 0.5,
	}))
	defer ts.Close()

	p := NewAnthropic("test-key", WithBaseURL(ts.URL))
	_, err := p.Complete(context.Background(), StructuredRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 512,
		Prompt:    "Extract the title.",
		Schema:    titleSchema,
	})

	require.Error(t, err)
	var ve *resilience.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.False(t, resilience.IsRetryable(err))
}

func TestComplete_NoToolCall(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_text_only",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "I cannot do that."},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":  100,
				"output_tokens": 10,
			},
		})
	}))
	defer ts.Close()

	p := NewAnthropic("test-key", WithBaseURL(ts.URL))
	_, err := p.Complete(context.Background(), StructuredRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 512,
		Prompt:    "Extract the title.",
		Schema:    titleSchema,
	})

	require.Error(t, err)
	var ve *resilience.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestSchemaValidate(t *testing.T) {
	schema := Schema{
		Name: "record_tags",
		Properties: map[string]Property{
			"tags":     {Type: "array", Items: &Property{Type: "string"}},
			"language": {Type: "string", Enum: []string{"de", "en"}},
			"count":    {Type: "integer"},
			"flagged":  {Type: "boolean"},
		},
		Required: []string{"tags"},
	}

	tests := []struct {
		name    string
		fields  map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"tags": []any{"invoice", "tax"}, "language": "de"}, false},
		{"missing required", map[string]any{"language": "de"}, true},
		{"wrong element type", map[string]any{"tags": []any{"invoice", 3.0}}, true},
		{"enum violation", map[string]any{"tags": []any{}, "language": "fr"}, true},
		{"wrong scalar type", map[string]any{"tags": []any{}, "count": "three"}, true},
		{"bool ok", map[string]any{"tags": []any{}, "flagged": true}, false},
		{"extra field tolerated", map[string]any{"tags": []any{}, "reasoning": "because"}, false},
		{"nil value tolerated", map[string]any{"tags": []any{}, "language": nil}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := schema.Validate(tc.fields)
			if tc.wantErr {
				require.Error(t, err)
				var ve *resilience.ValidationError
				assert.True(t, errors.As(err, &ve))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSchemaValidate_NestedObjects(t *testing.T) {
	schema := Schema{
		Name: "record_tags",
		Properties: map[string]Property{
			"tags": {Type: "array", Items: &Property{
				Type: "object",
				Properties: map[string]Property{
					"name":       {Type: "string"},
					"confidence": {Type: "number"},
				},
				Required: []string{"name", "confidence"},
			}},
		},
		Required: []string{"tags"},
	}

	valid := map[string]any{"tags": []any{
		map[string]any{"name": "invoice", "confidence": 0.9},
	}}
	require.NoError(t, schema.Validate(valid))

	missingConfidence := map[string]any{"tags": []any{
		map[string]any{"name": "invoice"},
	}}
	err := schema.Validate(missingConfidence)
	require.Error(t, err)
	var ve *resilience.ValidationError
	assert.True(t, errors.As(err, &ve))

	wrongType := map[string]any{"tags": []any{
		map[string]any{"name": "invoice", "confidence": "high"},
	}}
	require.Error(t, schema.Validate(wrongType))
}

func TestStructuredResponseAccessors(t *testing.T) {
	r := &StructuredResponse{Fields: map[string]any{
		"title": "Contract",
		"tags":  []any{"legal", 7.0, "contract"},
		"score": 0.5,
	}}

	assert.Equal(t, "Contract", r.String("title"))
	assert.Equal(t, "", r.String("missing"))
	assert.Equal(t, []string{"legal", "contract"}, r.StringSlice("tags"))
	assert.Nil(t, r.StringSlice("missing"))
	assert.InDelta(t, 0.5, r.Float("score"), 1e-9)
}
