package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"bigfive-llm/internal/domain"
)

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// GeminiRater implementa Rater con el SDK genai usando ResponseSchema.
type GeminiRater struct {
	client  *genai.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewGeminiRater(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiRater, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingCredentials)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiRater{client: client, timeout: cfg.Timeout, logger: logger}, nil
}

func (g *GeminiRater) SupportsStructuredOutput() bool { return true }

// geminiRatingSchema refleja RatingAnswer; Gemini solo admite enum sobre strings,
// por eso el rango se expresa con minimum/maximum.
func geminiRatingSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score": {
				Type:        genai.TypeInteger,
				Description: "Rating from 1-5 where 1=strongly disagree and 5=strongly agree",
				Minimum:     genai.Ptr(1.0),
				Maximum:     genai.Ptr(5.0),
			},
		},
		Required: []string{"score"},
	}
}

func (g *GeminiRater) Rate(ctx context.Context, prompt domain.Prompt, model domain.TargetModel) (domain.RawResponse, error) {
	ctx, cancel := withRequestTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(model.Temperature)),
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
	}
	if model.MaxTokens > 0 {
		config.MaxOutputTokens = int32(model.MaxTokens)
	}
	if prompt.Structured() {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = geminiRatingSchema()
	}

	resp, err := g.client.Models.GenerateContent(ctx, model.Model, genai.Text(prompt.User), config)
	if err != nil {
		return domain.RawResponse{}, classifyGemini(err)
	}
	if resp == nil {
		return domain.RawResponse{}, &TransportError{Kind: KindProvider, Provider: "gemini", Err: errors.New("nil response")}
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return domain.RawResponse{Text: "blocked: " + string(resp.PromptFeedback.BlockReason), Refused: true}, nil
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return domain.RawResponse{Text: "blocked: safety", Refused: true}, nil
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return domain.RawResponse{}, &TransportError{Kind: KindProvider, Provider: "gemini", Err: errors.New("no text content in response")}
	}
	return domain.RawResponse{Text: text, Structured: prompt.Structured()}, nil
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError("gemini", apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError("gemini", apiErrPtr.Code, err)
	}
	return classifyTransport("gemini", err)
}
