package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bigfive-llm/internal/domain"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicRatingTool     = "submit_rating"
	defaultMaxTokens        = 256
)

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// AnthropicRater implementa Rater usando la Messages API.
// El structured output se fuerza con una tool cuyo input_schema es el schema de rating.
type AnthropicRater struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewAnthropicRater(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicRater, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingCredentials)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnthropicRater{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{},
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (c *AnthropicRater) SupportsStructuredOutput() bool { return true }

func (c *AnthropicRater) Rate(ctx context.Context, prompt domain.Prompt, model domain.TargetModel) (domain.RawResponse, error) {
	ctx, cancel := withRequestTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := model.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := model.Temperature
	reqBody := anthropicRequest{
		Model:       model.Model,
		MaxTokens:   maxTokens,
		System:      prompt.System,
		Temperature: &temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt.User},
		},
	}
	if prompt.Structured() {
		reqBody.Tools = []anthropicTool{{
			Name:        anthropicRatingTool,
			Description: ratingSchemaDescription,
			InputSchema: prompt.Schema,
		}}
		reqBody.ToolChoice = &anthropicToolChoice{Type: "tool", Name: anthropicRatingTool}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.RawResponse{}, classifyTransport("anthropic", fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawResponse{}, classifyTransport("anthropic", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("anthropic error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(respBody), 512)),
		)
		return domain.RawResponse{}, statusError("anthropic", resp.StatusCode, fmt.Errorf("http status %d", resp.StatusCode))
	}

	var ar anthropicResponse
	if err := json.Unmarshal(respBody, &ar); err != nil {
		return domain.RawResponse{}, &TransportError{Kind: KindProvider, Provider: "anthropic", Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if ar.Error != nil {
		return domain.RawResponse{}, &TransportError{Kind: KindProvider, Provider: "anthropic", Err: fmt.Errorf("api error: %s", ar.Error.Message)}
	}

	var text strings.Builder
	for _, block := range ar.Content {
		switch block.Type {
		case "tool_use":
			if block.Name == anthropicRatingTool && len(block.Input) > 0 {
				return domain.RawResponse{Text: string(block.Input), Structured: true}, nil
			}
		case "text":
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return domain.RawResponse{}, &TransportError{Kind: KindProvider, Provider: "anthropic", Err: errors.New("empty response")}
	}
	// El modelo contesto en texto libre pese a la tool: pasa al parser lenient.
	return domain.RawResponse{Text: strings.TrimSpace(text.String())}, nil
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	MaxTokens   int                  `json:"max_tokens"`
	System      string               `json:"system,omitempty"`
	Messages    []anthropicMessage   `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
