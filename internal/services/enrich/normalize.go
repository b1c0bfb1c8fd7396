package enrich

import (
	"fmt"
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during normalization. They
// carry no routing information and would otherwise defeat URL dedup.
var trackingParams = map[string]bool{
	"gclid":    true,
	"fbclid":   true,
	"msclkid":  true,
	"mc_cid":   true,
	"mc_eid":   true,
	"ref":      true,
	"referrer": true,
	"igshid":   true,
	"_hsenc":   true,
	"_hsmi":    true,
	"vero_id":  true,
	"yclid":    true,
}

// NormalizeURL canonicalizes a supplier URL for dedup: lowercases scheme and
// host, drops the fragment, strips tracking query parameters, and removes a
// trailing slash on non-root paths. Two URLs normalizing to the same string
// are treated as the same supplier page.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q has no host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	// Drop default ports
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	} else {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	if u.RawQuery != "" {
		query := u.Query()
		for key := range query {
			if trackingParams[key] || strings.HasPrefix(strings.ToLower(key), "utm_") {
				query.Del(key)
			}
		}
		u.RawQuery = query.Encode()
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// Domain returns the lowercased host of a normalized URL without a leading
// www prefix. Used for the per-domain concurrency cap and rate limiting.
func Domain(normalizedURL string) string {
	u, err := url.Parse(normalizedURL)
	if err != nil || u.Host == "" {
		return normalizedURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
