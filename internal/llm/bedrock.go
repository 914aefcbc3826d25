package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/techopsonedev/onedev/internal/config"
)

// ModelInvoker is the subset of the Bedrock runtime client the provider uses.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock talks to Amazon Nova models through InvokeModel.
type Bedrock struct {
	client ModelInvoker
	cfg    *config.InferenceConfig
}

func NewBedrock(ctx context.Context, cfg *config.InferenceConfig) (*Bedrock, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewBedrockWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

func NewBedrockWithClient(client ModelInvoker, cfg *config.InferenceConfig) *Bedrock {
	return &Bedrock{client: client, cfg: cfg}
}

func (b *Bedrock) Name() string {
	return config.ProviderBedrock + ":" + b.cfg.Model
}

type novaText struct {
	Text string `json:"text"`
}

type novaMessage struct {
	Role    string     `json:"role"`
	Content []novaText `json:"content"`
}

type novaInferenceConfig struct {
	MaxTokens   int64   `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
}

type novaRequest struct {
	System          []novaText          `json:"system,omitempty"`
	Messages        []novaMessage       `json:"messages"`
	InferenceConfig novaInferenceConfig `json:"inferenceConfig"`
}

type novaResponse struct {
	Output struct {
		Message novaMessage `json:"message"`
	} `json:"output"`
	Usage struct {
		InputTokens  int64 `json:"inputTokens"`
		OutputTokens int64 `json:"outputTokens"`
		TotalTokens  int64 `json:"totalTokens"`
	} `json:"usage"`
}

// NovaRequestBody encodes messages in the Nova messages-v1 schema. System
// messages move to the top-level system block.
func NovaRequestBody(messages []Message, options *Options) ([]byte, error) {
	req := novaRequest{
		Messages: make([]novaMessage, 0, len(messages)),
		InferenceConfig: novaInferenceConfig{
			MaxTokens:   options.MaxTokens,
			Temperature: options.Temperature,
			TopP:        options.TopP,
		},
	}
	for _, m := range messages {
		if m.Role == RoleSystem {
			req.System = append(req.System, novaText{Text: m.Content})
			continue
		}
		role := m.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		req.Messages = append(req.Messages, novaMessage{Role: role, Content: []novaText{{Text: m.Content}}})
	}
	return json.Marshal(req)
}

// ParseNovaResponse extracts the reply text of an InvokeModel response body.
func ParseNovaResponse(body []byte) (*Response, error) {
	var resp novaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode bedrock response: %w", err)
	}
	var text string
	for _, c := range resp.Output.Message.Content {
		text += c.Text
	}
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{
		Content: text,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (b *Bedrock) Complete(ctx context.Context, messages []Message, opts ...Option) (*Response, error) {
	options := defaultOptions(b.cfg, opts)

	body, err := NovaRequestBody(messages, options)
	if err != nil {
		return nil, fmt.Errorf("encode bedrock request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(options.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("invoke model %s: %w", options.Model, err)
	}
	return ParseNovaResponse(out.Body)
}
