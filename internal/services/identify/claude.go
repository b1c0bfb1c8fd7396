package identify

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// ClaudeIdentifier implements the Identifier interface using the Anthropic
// Claude API with vision input.
type ClaudeIdentifier struct {
	config  common.IdentifyConfig
	logger  arbor.ILogger
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// NewClaudeIdentifier creates a Claude-backed identifier
func NewClaudeIdentifier(config common.IdentifyConfig, logger arbor.ILogger) (*ClaudeIdentifier, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set via ANTHROPIC_API_KEY, REPERIO_IDENTIFY_API_KEY, or identify.api_key in config)")
	}

	model := config.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Int("max_tokens", config.MaxTokens).
		Msg("Claude identifier initialized")

	return &ClaudeIdentifier{
		config:  config,
		logger:  logger,
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Identify sends the image and/or keywords to Claude and parses the candidate
func (s *ClaudeIdentifier) Identify(ctx context.Context, req interfaces.IdentifyRequest) (*models.IdentificationCandidate, error) {
	if req.Empty() {
		return nil, interfaces.ErrInvalidInput
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(req.Image)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(buildUserPrompt(req.Keywords)))

	maxTokens := s.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	startTime := time.Now()
	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Claude API call failed")
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUpstreamUnavailable, err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return nil, fmt.Errorf("%w: empty response", interfaces.ErrUpstreamUnavailable)
	}

	candidate, err := parseCandidate(response.String(), s.config.MaxURLHints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUpstreamUnavailable, err)
	}

	s.logger.Info().
		Str("part_name", candidate.PartName).
		Float64("confidence", candidate.Confidence).
		Int("url_hints", len(candidate.SupplierURLHints)).
		Dur("duration", time.Since(startTime)).
		Msg("Identification completed")

	return candidate, nil
}
