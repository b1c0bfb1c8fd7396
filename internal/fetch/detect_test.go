package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		blocked bool
	}{
		{"cloudflare challenge with 200", 200, "<html><div class=\"cf-browser-verification\"></div></html>", true},
		{"just a moment page", 503, "<title>Just a moment...</title>", true},
		{"perimeterx captcha", 200, "<div id=\"px-captcha\"></div>", true},
		{"recaptcha widget", 200, "<div class=\"g-recaptcha\"></div>", true},
		{"plain 403", 403, "<html>Forbidden</html>", true},
		{"plain 429", 429, "rate limited", true},
		{"normal page", 200, "<html><body><h1>Acme Fasteners</h1></body></html>", false},
		{"not found is not a block", 404, "<html>not found</html>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &Result{StatusCode: tt.status, Body: []byte(tt.body)}
			assert.Equal(t, tt.blocked, IsBlocked(res))
		})
	}
}

func TestIsShell(t *testing.T) {
	longBody := "<html><body>" + strings.Repeat("<p>real content here</p>", 200) + "</body></html>"

	tests := []struct {
		name       string
		status     int
		body       string
		minContent int
		shell      bool
	}{
		{"tiny body under floor", 200, "<html></html>", 2048, true},
		{"bare react mount point", 200, "<html><body><div id=\"root\"></div>" + strings.Repeat(" ", 3000) + "</body></html>", 2048, true},
		{"noscript warning", 200, "<body>You need to enable JavaScript to run this app." + strings.Repeat("x", 3000) + "</body>", 2048, true},
		{"substantial content", 200, longBody, 2048, false},
		{"error status is not a shell", 500, "<html></html>", 2048, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &Result{StatusCode: tt.status, Body: []byte(tt.body)}
			assert.Equal(t, tt.shell, IsShell(res, tt.minContent))
		})
	}
}

func TestClassify(t *testing.T) {
	long := strings.Repeat("<p>supplier content</p>", 200)

	assert.Equal(t, OutcomeBlocked, Classify(&Result{StatusCode: 403, Body: []byte("no")}, 10))
	assert.Equal(t, OutcomeShell, Classify(&Result{StatusCode: 200, Body: []byte("<html/>")}, 2048))
	assert.Equal(t, OutcomeSuccess, Classify(&Result{StatusCode: 200, Body: []byte(long)}, 10))
	assert.Equal(t, OutcomeError, Classify(&Result{StatusCode: 500, Body: []byte(long)}, 10))
}
