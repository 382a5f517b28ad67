package outreach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/common"
	"github.com/ternarybob/leadforge/internal/models"
)

// Service generates per-channel outreach copy with Claude.
// Implements interfaces.OutreachGenerator.
type Service struct {
	config    *common.ClaudeConfig
	client    *anthropic.Client
	logger    arbor.ILogger
	timeout   time.Duration
	maxTokens int
}

// NewService creates a Claude-backed outreach service
func NewService(config *common.ClaudeConfig, logger arbor.ILogger) (*Service, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY, LEADFORGE_CLAUDE_API_KEY, or claude.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}

	timeout := 2 * time.Minute
	if config.Timeout != "" {
		parsed, err := time.ParseDuration(config.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
		}
		timeout = parsed
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude outreach service initialized")

	return &Service{
		config:    config,
		client:    &client,
		logger:    logger,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Generate writes outreach copy for one scored lead. The response is
// requested as a JSON object and parsed into OutreachMessages.
func (s *Service) Generate(ctx context.Context, lead *models.Lead, productContext, language string) (*models.OutreachMessages, error) {
	prompt := buildOutreachPrompt(lead, productContext, language)

	raw, err := s.complete(ctx, outreachSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var messages models.OutreachMessages
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &messages); err != nil {
		return nil, fmt.Errorf("failed to parse outreach response: %w", err)
	}

	s.logger.Debug().
		Str("place_id", lead.PlaceID).
		Str("name", lead.Name).
		Msg("Outreach messages generated")
	return &messages, nil
}

// complete runs one prompt through the Messages API and returns the
// concatenated text blocks.
func (s *Service) complete(ctx context.Context, system, prompt string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			response.WriteString(variant.Text)
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}
	return response.String(), nil
}

// StripCodeFences removes a surrounding markdown code fence from an
// LLM response, which models add despite instructions not to.
func StripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
