package precog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// SchemaProcessor asks the model to return a single JSON object conforming
// to the job's context["schema"] (a JSON Schema object) and parses the
// response as structured data rather than free text.
type SchemaProcessor struct {
	client *anthropic.Client
	model  string
}

func NewSchemaProcessor(apiKey, model string) *SchemaProcessor {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &SchemaProcessor{client: &client, model: model}
}

func (p *SchemaProcessor) Run(ctx context.Context, task string, jobCtx map[string]interface{}, emit Emitter) error {
	prompt, _ := jobCtx["prompt"].(string)
	if prompt == "" {
		prompt = task
	}
	schema, ok := jobCtx["schema"]
	if !ok || schema == nil {
		return emit(ctx, "error", map[string]string{"message": "precog: schema task requires context.schema"})
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("precog: marshal schema: %w", err)
	}

	if err := emit(ctx, "thinking", map[string]string{"status": "requesting structured result"}); err != nil {
		return err
	}

	system := "Respond with a single JSON object matching this JSON Schema exactly, " +
		"with no prose before or after it: " + string(schemaJSON)

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		_ = emit(ctx, "error", map[string]string{"message": err.Error()})
		return fmt.Errorf("precog: schema request failed: %w", err)
	}

	var raw string
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw += block.Text
		}
	}

	var result interface{}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		_ = emit(ctx, "error", map[string]string{"message": "precog: model did not return valid JSON"})
		return fmt.Errorf("precog: decode model output: %w", err)
	}

	if err := emit(ctx, "grounding.chunk", map[string]interface{}{"result": result}); err != nil {
		return err
	}
	return emit(ctx, "answer.complete", map[string]interface{}{"result": result})
}
