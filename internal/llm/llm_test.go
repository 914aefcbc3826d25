package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techopsonedev/onedev/internal/config"
)

func testInferenceConfig(provider string) *config.InferenceConfig {
	return &config.InferenceConfig{
		Provider:    provider,
		Model:       "test-model",
		APIKey:      "test-key",
		MaxTokens:   1500,
		Temperature: 0.3,
		TopP:        0.9,
	}
}

func TestOpenAIComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"tests_executed\": 3}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	cfg := testInferenceConfig(config.ProviderOpenAI)
	cfg.Endpoint = srv.URL + "/v1/"
	p, err := NewOpenAI(cfg)
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(),
		[]Message{SystemMessage("be terse"), UserMessage("analyze")},
		WithMaxTokens(42),
	)
	require.NoError(t, err)
	assert.Equal(t, `{"tests_executed": 3}`, resp.Content)
	assert.Equal(t, int64(15), resp.Usage.TotalTokens)

	assert.Equal(t, "test-model", got["model"])
	assert.EqualValues(t, 42, got["max_tokens"])
	assert.EqualValues(t, 0.9, got["top_p"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
	assert.Equal(t, "openai:test-model", p.Name())
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testInferenceConfig(config.ProviderOpenAI)
	cfg.Endpoint = srv.URL + "/v1/"
	p, err := NewOpenAI(cfg)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), []Message{UserMessage("analyze")})
	assert.Error(t, err)
}

func TestNewOpenAIAzureRequiresEndpoint(t *testing.T) {
	_, err := NewOpenAI(testInferenceConfig(config.ProviderAzure))
	assert.Error(t, err)
}

func TestNovaRequestBody(t *testing.T) {
	body, err := NovaRequestBody(
		[]Message{SystemMessage("sys"), UserMessage("logs")},
		&Options{MaxTokens: 1500, Temperature: 0.3, TopP: 0.9},
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"system": [{"text": "sys"}],
		"messages": [{"role": "user", "content": [{"text": "logs"}]}],
		"inferenceConfig": {"maxTokens": 1500, "temperature": 0.3, "topP": 0.9}
	}`, string(body))
}

func TestParseNovaResponse(t *testing.T) {
	resp, err := ParseNovaResponse([]byte(`{
		"output": {"message": {"role": "assistant", "content": [{"text": "hello "}, {"text": "world"}]}},
		"usage": {"inputTokens": 7, "outputTokens": 2, "totalTokens": 9}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Content)
	assert.Equal(t, int64(9), resp.Usage.TotalTokens)

	_, err = ParseNovaResponse([]byte(`{"output": {"message": {"content": []}}}`))
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = ParseNovaResponse([]byte(`not json`))
	assert.Error(t, err)
}

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockComplete(t *testing.T) {
	fake := &fakeInvoker{body: `{"output": {"message": {"role": "assistant", "content": [{"text": "ok"}]}}}`}
	p := NewBedrockWithClient(fake, testInferenceConfig(config.ProviderBedrock))

	resp, err := p.Complete(context.Background(), []Message{UserMessage("logs")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "test-model", *fake.input.ModelId)
	assert.Equal(t, "application/json", *fake.input.ContentType)
	assert.Contains(t, string(fake.input.Body), `"maxTokens":1500`)

	fake.err = errors.New("throttled")
	_, err = p.Complete(context.Background(), []Message{UserMessage("logs")})
	assert.ErrorContains(t, err, "throttled")
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), testInferenceConfig("watson"))
	assert.Error(t, err)
}
