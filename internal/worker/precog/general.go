package precog

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// GeneralProcessor is the fallback precog: it takes whatever prompt/context
// the job carries and asks the configured model for a free-form answer,
// streaming deltas as they arrive.
type GeneralProcessor struct {
	client *anthropic.Client
	model  string
}

func NewGeneralProcessor(apiKey, model string) *GeneralProcessor {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &GeneralProcessor{client: &client, model: model}
}

func (p *GeneralProcessor) Run(ctx context.Context, task string, jobCtx map[string]interface{}, emit Emitter) error {
	prompt, _ := jobCtx["prompt"].(string)
	if prompt == "" {
		prompt = task
	}
	if prompt == "" {
		return emit(ctx, "error", map[string]string{"message": "precog: empty prompt"})
	}

	if err := emit(ctx, "thinking", map[string]string{"status": "dispatching to model"}); err != nil {
		return err
	}

	stream := p.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	var message anthropic.Message
	var full string
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return fmt.Errorf("precog: accumulate stream event: %w", err)
		}

		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta)
		if !ok {
			continue
		}
		full += textDelta.Text
		if err := emit(ctx, "answer.delta", map[string]string{"text": textDelta.Text}); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		_ = emit(ctx, "error", map[string]string{"message": err.Error()})
		return fmt.Errorf("precog: stream error: %w", err)
	}

	return emit(ctx, "answer.complete", map[string]interface{}{
		"text":        full,
		"stop_reason": string(message.StopReason),
	})
}
