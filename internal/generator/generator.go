package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/d60-Lab/post-scheduler/config"
)

const systemPrompt = "You are a professional LinkedIn content creator. Generate an engaging, professional LinkedIn post about the given topic. Include emojis and hashtags. The tone should be inspiring and thought-provoking."

var (
	ErrNotConfigured = errors.New("content generator: OpenAI API key is not configured")
	ErrEmptyTopic    = errors.New("content generator: topic is empty")
)

// GenerationError 生成失败，帖子不会被创建
type GenerationError struct {
	Topic string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate post for %q: %v", e.Topic, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator 主题 -> 正文
type Generator interface {
	Generate(ctx context.Context, topic string) (string, error)
}

// OpenAIGenerator 基于 chat completion 的生成器
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(cfg config.OpenAIConfig) *OpenAIGenerator {
	g := &OpenAIGenerator{model: cfg.Model}
	if g.model == "" {
		g.model = openai.GPT4o
	}
	if cfg.APIKey == "" {
		return g
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	g.client = openai.NewClientWithConfig(oc)
	return g
}

func (g *OpenAIGenerator) Generate(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", ErrEmptyTopic
	}
	if g.client == nil {
		return "", ErrNotConfigured
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: topic},
		},
	})
	if err != nil {
		return "", &GenerationError{Topic: topic, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Topic: topic, Err: errors.New("no choices returned")}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &GenerationError{Topic: topic, Err: errors.New("empty completion")}
	}
	return content, nil
}
