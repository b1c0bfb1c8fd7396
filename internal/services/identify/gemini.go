package identify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"google.golang.org/genai"
)

// GeminiIdentifier implements the Identifier interface using Google Gemini
// with vision input.
type GeminiIdentifier struct {
	config  common.IdentifyConfig
	logger  arbor.ILogger
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiIdentifier creates a Gemini-backed identifier
func NewGeminiIdentifier(config common.IdentifyConfig, logger arbor.ILogger) (*GeminiIdentifier, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required (set via REPERIO_IDENTIFY_API_KEY or identify.api_key in config)")
	}

	model := config.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Msg("Gemini identifier initialized")

	return &GeminiIdentifier{
		config:  config,
		logger:  logger,
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Identify sends the image and/or keywords to Gemini and parses the candidate
func (s *GeminiIdentifier) Identify(ctx context.Context, req interfaces.IdentifyRequest) (*models.IdentificationCandidate, error) {
	if req.Empty() {
		return nil, interfaces.ErrInvalidInput
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	parts := make([]*genai.Part, 0, 2)
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image, mime))
	}
	parts = append(parts, genai.NewPartFromText(buildUserPrompt(req.Keywords)))

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: parts},
	}
	genConfig := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(s.config.Temperature),
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}

	startTime := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, genConfig)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Gemini API call failed")
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUpstreamUnavailable, err)
	}

	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
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
