package fetch

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Fingerprint is one rotating browser identity used by the challenge-bypass
// strategy. Header ordering and coherence matter more than any single value:
// a Chrome user agent with Firefox client hints is an instant giveaway.
type Fingerprint struct {
	UserAgent       string `yaml:"user_agent"`
	AcceptLanguage  string `yaml:"accept_language"`
	SecChUa         string `yaml:"sec_ch_ua"`
	SecChUaMobile   string `yaml:"sec_ch_ua_mobile"`
	SecChUaPlatform string `yaml:"sec_ch_ua_platform"`
}

// FingerprintPool holds browser fingerprints loaded from a YAML profile file
// and hands them out in random order.
type FingerprintPool struct {
	fingerprints []Fingerprint
	mu           sync.Mutex
	rng          *rand.Rand
}

// defaultFingerprints is the built-in pool used when no profile file is
// configured or the file cannot be read.
var defaultFingerprints = []Fingerprint{
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage:  "en-US,en;q=0.9",
		SecChUa:         `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage:  "en-US,en;q=0.8",
		SecChUa:         `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"macOS"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		AcceptLanguage:  "en-GB,en;q=0.9",
		SecChUa:         `"Google Chrome";v="119", "Chromium";v="119", "Not?A_Brand";v="24"`,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"Linux"`,
	},
}

// fingerprintFile is the on-disk YAML shape
type fingerprintFile struct {
	Fingerprints []Fingerprint `yaml:"fingerprints"`
}

// NewFingerprintPool creates a pool from the built-in defaults
func NewFingerprintPool() *FingerprintPool {
	return &FingerprintPool{
		fingerprints: defaultFingerprints,
		rng:          rand.New(rand.NewSource(rand.Int63())),
	}
}

// LoadFingerprintPool loads a pool from a YAML profile file, falling back to
// the built-in defaults when the file is missing.
func LoadFingerprintPool(path string) (*FingerprintPool, error) {
	if path == "" {
		return NewFingerprintPool(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewFingerprintPool(), nil
		}
		return nil, fmt.Errorf("failed to read fingerprint file %s: %w", path, err)
	}

	var file fingerprintFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fingerprint file %s: %w", path, err)
	}
	if len(file.Fingerprints) == 0 {
		return NewFingerprintPool(), nil
	}

	return &FingerprintPool{
		fingerprints: file.Fingerprints,
		rng:          rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// Next returns a random fingerprint from the pool
func (p *FingerprintPool) Next() Fingerprint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fingerprints[p.rng.Intn(len(p.fingerprints))]
}

// Size returns the number of fingerprints in the pool
func (p *FingerprintPool) Size() int {
	return len(p.fingerprints)
}
