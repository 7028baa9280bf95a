package completion

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Provider is the upstream the client talks to.
type Provider interface {
	// Complete performs one chat completion attempt.
	Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// Embed returns the embedding of text computed by model.
	Embed(ctx context.Context, model, text string) ([]float64, error)
}

// OpenAIProvider implements Provider with the official openai/openai-go SDK
// (/v1/chat/completions and /v1/embeddings).
type OpenAIProvider struct {
	cli openai.Client
}

// NewOpenAIProvider builds a provider from cfg. SDK-level retries are
// disabled: the only retry parley performs is dropping turns on overflow.
func NewOpenAIProvider(cfg Config, opts ...option.RequestOption) *OpenAIProvider {
	base := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		base = append(base, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		base = append(base, option.WithOrganization(cfg.Organization))
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIProvider{
		cli: openai.NewClient(append(base, opts...)...),
	}
}

// Complete implements Provider.Complete.
func (p *OpenAIProvider) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messagesToChatParams(req.Messages),
	}
	if req.Stop != "" {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfString: openai.String(req.Stop),
		}
	}

	resp, err := p.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	choice := resp.Choices[0]
	return &llm.ChatResponse{
		Model: resp.Model,
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: choice.Message.Content,
		},
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Embed implements Provider.Embed.
func (p *OpenAIProvider) Embed(ctx context.Context, model, text string) ([]float64, error) {
	resp, err := p.cli.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Data[0].Embedding, nil
}

func messagesToChatParams(msgs []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
