package fetch

import (
	"bytes"
	"strings"
)

// blockSignatures are body fragments emitted by common bot-challenge and
// blocking layers. Matching is case-insensitive.
var blockSignatures = []string{
	"cf-browser-verification",
	"cf_chl_opt",
	"challenge-platform",
	"just a moment...",
	"attention required! | cloudflare",
	"ddos protection by",
	"px-captcha",
	"_pxhd",
	"akamai bot manager",
	"request unsuccessful. incapsula",
	"are you a robot",
	"enable javascript and cookies to continue",
	"g-recaptcha",
	"h-captcha",
}

// blockStatusCodes are status codes that, combined with a challenge body or
// served by a known protection layer, indicate an anti-automation block.
var blockStatusCodes = map[int]bool{
	403: true,
	429: true,
	503: true,
}

// shellMarkers indicate a JavaScript application shell that carries no
// server-rendered content.
var shellMarkers = []string{
	"you need to enable javascript to run this app",
	"<div id=\"root\"></div>",
	"<div id=\"app\"></div>",
	"<div id=\"__next\"></div>",
}

// IsBlocked reports whether a response matches a known block/challenge
// signature. A blocking status code alone is enough; signature fragments
// catch challenges served with status 200.
func IsBlocked(res *Result) bool {
	if res == nil {
		return false
	}
	lower := strings.ToLower(string(res.Body))
	for _, sig := range blockSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	if blockStatusCodes[res.StatusCode] {
		return true
	}
	return false
}

// IsShell reports whether content is present but looks like an unrendered
// application shell: below the byte-size floor, or a bare SPA mount point
// with no meaningful text.
func IsShell(res *Result, minContentBytes int) bool {
	if res == nil || res.StatusCode < 200 || res.StatusCode >= 300 {
		return false
	}
	body := bytes.TrimSpace(res.Body)
	if len(body) < minContentBytes {
		return true
	}
	lower := strings.ToLower(string(body))
	for _, marker := range shellMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Classify reduces a successful fetch result to an outcome
func Classify(res *Result, minContentBytes int) Outcome {
	if IsBlocked(res) {
		return OutcomeBlocked
	}
	if IsShell(res, minContentBytes) {
		return OutcomeShell
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return OutcomeSuccess
	}
	return OutcomeError
}
