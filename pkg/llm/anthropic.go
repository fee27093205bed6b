package llm

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/doctrove/enrich-cli/internal/cost"
	"github.com/doctrove/enrich-cli/internal/resilience"
)

// Option configures the Anthropic provider.
type Option func(*anthropicProvider)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(p *anthropicProvider) {
		p.requestOpts = append(p.requestOpts, option.WithBaseURL(url))
	}
}

// WithRates overrides the pricing table used for cost attribution.
func WithRates(rates cost.Rates) Option {
	return func(p *anthropicProvider) {
		p.calc = cost.NewCalculator(rates)
	}
}

type anthropicProvider struct {
	client      sdk.Client
	calc        *cost.Calculator
	requestOpts []option.RequestOption
}

// NewAnthropic creates a Provider backed by the official Anthropic SDK.
// Structured output is enforced by publishing the request schema as the
// single available tool and forcing the model to call it.
func NewAnthropic(apiKey string, opts ...Option) Provider {
	p := &anthropicProvider{
		calc:        cost.NewCalculator(cost.DefaultRates()),
		requestOpts: []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = sdk.NewClient(p.requestOpts...)
	return p
}

func (p *anthropicProvider) Complete(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
		Tools: []sdk.ToolUnionParam{{
			OfTool: &sdk.ToolParam{
				Name:        req.Schema.Name,
				Description: sdk.String(req.Schema.Description),
				InputSchema: toInputSchema(req.Schema),
			},
		}},
		ToolChoice: sdk.ToolChoiceUnionParam{
			OfTool: &sdk.ToolChoiceToolParam{Name: req.Schema.Name},
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifySDKError(err)
	}

	fields, err := extractToolInput(msg, req.Schema.Name)
	if err != nil {
		return nil, err
	}
	if err := req.Schema.Validate(fields); err != nil {
		return nil, err
	}

	usage := TokenUsage{
		InputTokens:              msg.Usage.InputTokens,
		OutputTokens:             msg.Usage.OutputTokens,
		CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
	}
	usd := p.calc.Tokens(req.Model, usage.InputTokens, usage.OutputTokens,
		usage.CacheCreationInputTokens, usage.CacheReadInputTokens)

	zap.L().Debug("llm call complete",
		zap.String("stage", req.Stage),
		zap.String("model", req.Model),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.Float64("cost_usd", usd),
	)

	return &StructuredResponse{
		Fields: fields,
		Model:  string(msg.Model),
		Usage:  usage,
		Cost:   usd,
	}, nil
}

// toInputSchema converts a Schema to the SDK's tool input schema shape.
func toInputSchema(s Schema) sdk.ToolInputSchemaParam {
	props := make(map[string]any, len(s.Properties))
	for name, prop := range s.Properties {
		props[name] = toJSONSchema(prop)
	}
	return sdk.ToolInputSchemaParam{
		Properties: props,
		Required:   s.Required,
	}
}

func toJSONSchema(p Property) map[string]any {
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		out["items"] = toJSONSchema(*p.Items)
	}
	if len(p.Properties) > 0 {
		props := make(map[string]any, len(p.Properties))
		for name, nested := range p.Properties {
			props[name] = toJSONSchema(nested)
		}
		out["properties"] = props
	}
	if len(p.Required) > 0 {
		out["required"] = p.Required
	}
	return out
}

// extractToolInput pulls the forced tool call out of the response. The
// model occasionally emits a text block before the tool call; only the
// tool input matters.
func extractToolInput(msg *sdk.Message, toolName string) (map[string]any, error) {
	for _, block := range msg.Content {
		v, ok := block.AsAny().(sdk.ToolUseBlock)
		if !ok || v.Name != toolName {
			continue
		}
		raw, err := json.Marshal(v.Input)
		if err != nil {
			return nil, eris.Wrap(err, "llm: marshal tool input")
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, resilience.NewValidationError("llm: tool input is not a JSON object: %v", err)
		}
		return fields, nil
	}
	return nil, resilience.NewValidationError("llm: response contains no %s tool call (stop_reason=%s)", toolName, msg.StopReason)
}

// classifySDKError maps SDK transport errors onto the resilience
// taxonomy so the orchestrator can tell retryable from fatal.
func classifySDKError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.FromStatusCode(apiErr.StatusCode, "llm: api error")
	}
	return &resilience.ConnectionError{Err: eris.Wrap(err, "llm: request failed")}
}
