package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/techopsonedev/onedev/internal/config"
)

// OpenAI client implementation, also used for Azure OpenAI deployments.
type OpenAI struct {
	client *openai.Client
	cfg    *config.InferenceConfig
}

func NewOpenAI(cfg *config.InferenceConfig, extra ...option.RequestOption) (*OpenAI, error) {
	var opts []option.RequestOption

	switch cfg.Provider {
	case config.ProviderAzure:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("azure provider requires inference.endpoint")
		}
		opts = append(opts,
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	default: // "openai"
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
	}
	opts = append(opts, option.WithMaxRetries(0))
	opts = append(opts, extra...)

	return &OpenAI{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

func (o *OpenAI) Name() string {
	return o.cfg.Provider + ":" + o.cfg.Model
}

func (o *OpenAI) Complete(ctx context.Context, messages []Message, opts ...Option) (*Response, error) {
	options := defaultOptions(o.cfg, opts)

	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.F(options.Model),
		Messages:    openai.F(params),
		Temperature: openai.F(options.Temperature),
		TopP:        openai.F(options.TopP),
		MaxTokens:   openai.F(options.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// defaultOptions seeds Options from configuration and applies opts on top.
func defaultOptions(cfg *config.InferenceConfig, opts []Option) *Options {
	options := &Options{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
