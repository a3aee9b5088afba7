package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/ai"
	"github.com/nofone/solmatch/internal/logger"
	"github.com/nofone/solmatch/internal/utils"
)

const (
	defaultModel   = "gpt-4o"
	defaultBackoff = 2 * time.Second

	systemPrompt = "You are a government-contracting business development analyst. " +
		"Follow the structural instructions in the user prompt exactly."
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator wraps the OpenAI chat-completion API behind the ai.Generator
// contract.
type Generator struct {
	client     chatCompleter
	modelName  string
	maxRetries int
	logger     *zap.Logger
}

func NewGenerator(apiKey, model string, maxRetries int, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Generator{
		client:     openai.NewClient(apiKey),
		modelName:  model,
		maxRetries: maxRetries,
		logger:     logger.WithProvider(log, "openai", model),
	}, nil
}

// Complete sends the prompt as a system+user chat completion and returns the
// first choice's content. An empty response is an error.
func (g *Generator) Complete(ctx context.Context, req ai.Request) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("openai generator is not initialized")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	chatReq := openai.ChatCompletionRequest{
		Model: g.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying openai request",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if err := utils.WaitFor(ctx, defaultBackoff); err != nil {
				return "", err
			}
		}

		resp, err := g.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			lastErr = fmt.Errorf("create chat completion: %w", err)
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = errors.New("openai api returned no choices")
			continue
		}

		output := strings.TrimSpace(resp.Choices[0].Message.Content)
		if output == "" {
			lastErr = errors.New("openai api returned empty response")
			continue
		}

		return output, nil
	}

	return "", lastErr
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
