package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://WWW.Example.COM/Parts", "https://www.example.com/Parts"},
		{"drops fragment", "https://example.com/page#section-2", "https://example.com/page"},
		{"strips utm params", "https://example.com/p?utm_source=x&utm_medium=y&id=42", "https://example.com/p?id=42"},
		{"strips click ids", "https://example.com/p?gclid=abc&fbclid=def", "https://example.com/p"},
		{"keeps meaningful query", "https://example.com/search?q=bearing", "https://example.com/search?q=bearing"},
		{"trims trailing slash", "https://example.com/parts/", "https://example.com/parts"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"adds scheme", "example.com/catalog", "https://example.com/catalog"},
		{"drops default https port", "https://example.com:443/x", "https://example.com/x"},
		{"drops default http port", "http://example.com:80/x", "http://example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURLRejectsUnusable(t *testing.T) {
	for _, in := range []string{"", "   ", "ftp://example.com/file", "https://"} {
		_, err := NormalizeURL(in)
		assert.Error(t, err, "input %q should be rejected", in)
	}
}

func TestNormalizeURLDedup(t *testing.T) {
	// Variants of the same page must normalize identically
	variants := []string{
		"https://example.com/parts?utm_source=newsletter",
		"https://example.com/parts#top",
		"https://example.com/parts/",
		"https://EXAMPLE.com/parts",
	}

	first, err := NormalizeURL(variants[0])
	require.NoError(t, err)
	for _, v := range variants[1:] {
		got, err := NormalizeURL(v)
		require.NoError(t, err)
		assert.Equal(t, first, got, "variant %q should dedup", v)
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://www.example.com/parts"))
	assert.Equal(t, "example.com", Domain("https://example.com:8080/parts"))
	assert.Equal(t, "shop.example.com", Domain("https://shop.example.com/"))
}
