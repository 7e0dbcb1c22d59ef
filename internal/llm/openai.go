package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI models.
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Judge scores a claim against evidence using OpenAI's Chat Completions API.
func (p *OpenAIProvider) Judge(ctx context.Context, req JudgeRequest) (*Judgment, error) {
	reply, err := p.complete(ctx, judgeSystemPrompt, BuildJudgePrompt(req), req.Model, req.MaxTokens)
	if err != nil {
		return nil, err
	}
	return ParseJudgment(reply)
}

// Aggregate combines evaluator reports into one final verdict.
func (p *OpenAIProvider) Aggregate(ctx context.Context, req AggregateRequest) (*AggregateVerdict, error) {
	reply, err := p.complete(ctx, aggregateSystemPrompt, BuildAggregatePrompt(req), req.Model, req.MaxTokens)
	if err != nil {
		return nil, err
	}
	return ParseAggregateVerdict(reply)
}

func (p *OpenAIProvider) complete(ctx context.Context, system, prompt, modelOverride string, maxTokens int) (string, error) {
	chatModel := modelOverride
	if chatModel == "" {
		chatModel = p.config.Model
	}
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}

	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 2000
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, openai.ChatCompletionRequest{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.2, // Low temperature for consistent structured output
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}
