package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainLimiterSpacesSameDomain(t *testing.T) {
	limiter := NewDomainLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://example.com/a"))
	require.NoError(t, limiter.Wait(ctx, "https://example.com/b"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "second request to the same domain must wait")
}

func TestDomainLimiterIndependentDomains(t *testing.T) {
	limiter := NewDomainLimiter(200 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://alpha.example/a"))
	require.NoError(t, limiter.Wait(ctx, "https://beta.example/b"))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 100*time.Millisecond, "different domains must not queue behind each other")
}

func TestDomainLimiterWWWPrefixSharesDomain(t *testing.T) {
	limiter := NewDomainLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://www.example.com/a"))
	require.NoError(t, limiter.Wait(ctx, "https://example.com/b"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestDomainLimiterHonorsContext(t *testing.T) {
	limiter := NewDomainLimiter(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, limiter.Wait(ctx, "https://example.com/a"))
	err := limiter.Wait(ctx, "https://example.com/b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDomainLimiterZeroDelayNoop(t *testing.T) {
	limiter := NewDomainLimiter(0)
	assert.NoError(t, limiter.Wait(context.Background(), "https://example.com/"))
}
