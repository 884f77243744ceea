package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hitushen/hostsummary/internal/prompt"
)

// ErrTransport 表示模型服务调用在网络或服务层面失败。
var ErrTransport = errors.New("model transport failure")

// Completer 是对话式补全服务的最小接口。
type Completer interface {
	Complete(ctx context.Context, pkg prompt.Package) (string, error)
}

// OpenAIClient 基于 go-openai 的 Completer 实现。
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient 创建客户端，baseURL 为空时使用官方地址。
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model must not be empty")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Model 返回当前使用的模型名。
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete 发送 system + user 两条消息并返回第一条回复内容。
func (c *OpenAIClient) Complete(ctx context.Context, pkg prompt.Package) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: pkg.System},
			{Role: openai.ChatMessageRoleUser, Content: pkg.User},
		},
		Temperature:      pkg.Sampling.Temperature,
		MaxTokens:        pkg.Sampling.MaxTokens,
		TopP:             pkg.Sampling.TopP,
		FrequencyPenalty: pkg.Sampling.FrequencyPenalty,
		PresencePenalty:  pkg.Sampling.PresencePenalty,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrTransport)
	}
	return resp.Choices[0].Message.Content, nil
}
