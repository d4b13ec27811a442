package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/fx"

	"github.com/pagflow/gatekeeper/pkg/config"
)

// Completer answers one user message. The chat connector depends on this
// interface, never on a concrete vendor client.
type Completer interface {
	Complete(ctx context.Context, userMessage string) (string, error)
}

type openAICompleter struct {
	client *openai.Client
	model  string
}

func NewCompleter(cfg *config.Config) Completer {
	return &openAICompleter{
		client: openai.NewClient(cfg.OpenAI.APIKey),
		model:  cfg.OpenAI.Model,
	}
}

func (o *openAICompleter) Complete(ctx context.Context, userMessage string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var Module = fx.Options(
	fx.Provide(NewCompleter),
)
