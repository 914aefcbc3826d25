package llm

import (
	"context"
	"errors"
)

type Provider interface {
	// Complete sends a role-tagged conversation and returns the model's reply text.
	Complete(ctx context.Context, messages []Message, opts ...Option) (*Response, error)
	// Name identifies the backend and model, e.g. "bedrock:amazon.nova-pro-v1:0".
	Name() string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message   { return Message{Role: RoleUser, Content: content} }

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Option func(*Options)

type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	TopP        float64
}

func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

func WithMaxTokens(n int64) Option {
	return func(o *Options) { o.MaxTokens = n }
}

func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

func WithTopP(p float64) Option {
	return func(o *Options) { o.TopP = p }
}

type Response struct {
	Content string
	Usage   Usage
}

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("inference returned no content")
