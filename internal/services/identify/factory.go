package identify

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// NewIdentifier creates the identifier implementation selected by
// configuration
func NewIdentifier(config common.IdentifyConfig, logger arbor.ILogger) (interfaces.Identifier, error) {
	logger.Info().Str("provider", config.Provider).Msg("Initializing identification service")

	switch config.Provider {
	case "claude", "":
		return NewClaudeIdentifier(config, logger)
	case "gemini":
		return NewGeminiIdentifier(config, logger)
	default:
		return nil, fmt.Errorf("unsupported identify provider '%s': must be 'claude' or 'gemini'", config.Provider)
	}
}
