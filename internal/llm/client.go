package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sagalabs/saga/internal/config"
	"github.com/sagalabs/saga/internal/registry"
)

// Client talks to one provider slot over the OpenAI-compatible API
// surface. All supported providers (including local Ollama and custom
// gateways) expose this surface.
type Client struct {
	api     *openai.Client
	httpc   *http.Client
	baseURL string
	apiKey  string
	name    string
	model   string
}

// NewClient creates a client bound to the given slot.
func NewClient(ref registry.SlotRef) *Client {
	base := ref.Slot.BaseURL
	if base == "" {
		base = config.DefaultBaseURL(ref.Slot.Provider)
	}
	base = strings.TrimRight(base, "/")

	apiCfg := openai.DefaultConfig(ref.Slot.APIKey)
	apiCfg.BaseURL = base

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		httpc:   &http.Client{Timeout: 120 * time.Second},
		baseURL: base,
		apiKey:  ref.Slot.APIKey,
		name:    ref.ProviderName(),
		model:   ref.Slot.ModelName,
	}
}

// Name returns the provider identity of this client.
func (c *Client) Name() string {
	return c.name
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var messages []openai.ChatCompletionMessage
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}

	if req.JSONMode {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	return &CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

// Embed returns one embedding vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
