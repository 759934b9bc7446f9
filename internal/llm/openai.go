package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"bigfive-llm/internal/domain"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultXAIBaseURL    = "https://api.x.ai/v1"
)

// OpenAIConfig sirve tanto para OpenAI como para APIs compatibles (xAI).
type OpenAIConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// OpenAIRater implementa Rater sobre chat completions con response_format json_schema.
type OpenAIRater struct {
	client   openai.Client
	provider string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewOpenAIRater(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIRater, error) {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingCredentials)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		// los reintentos los maneja RetryPolicy.
		option.WithMaxRetries(0),
	)
	return &OpenAIRater{
		client:   client,
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		logger:   logger,
	}, nil
}

func (r *OpenAIRater) SupportsStructuredOutput() bool { return true }

func (r *OpenAIRater) Rate(ctx context.Context, prompt domain.Prompt, model domain.TargetModel) (domain.RawResponse, error) {
	ctx, cancel := withRequestTimeout(ctx, r.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: model.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Temperature: openai.Float(model.Temperature),
	}
	if model.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(model.MaxTokens))
	}
	if prompt.Structured() {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        ratingSchemaName,
					Description: openai.String(ratingSchemaDescription),
					Schema:      prompt.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return domain.RawResponse{}, r.classify(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return domain.RawResponse{}, &TransportError{Kind: KindProvider, Provider: r.provider, Err: errors.New("empty choices")}
	}

	msg := resp.Choices[0].Message
	if strings.TrimSpace(msg.Refusal) != "" {
		r.logger.Debug("model refusal", zap.String("model", model.ID()), zap.Int("item", prompt.ItemIndex))
		return domain.RawResponse{Text: msg.Refusal, Structured: prompt.Structured(), Refused: true}, nil
	}
	return domain.RawResponse{Text: msg.Content, Structured: prompt.Structured()}, nil
}

func (r *OpenAIRater) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return statusError(r.provider, apiErr.StatusCode, err)
	}
	return classifyTransport(r.provider, err)
}
