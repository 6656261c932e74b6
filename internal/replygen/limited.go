package replygen

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited bounds the request rate of another Generator
type RateLimited struct {
	inner   Generator
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond calls with the given burst; perSecond <= 0 means unlimited
func NewRateLimited(inner Generator, perSecond float64, burst int) *RateLimited {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) GenerateReply(ctx context.Context, commentText, postText string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		generateCount.WithLabelValues("rate_limited").Inc()
		return "", fmt.Errorf("waiting for generator rate limit: %w", err)
	}
	return r.inner.GenerateReply(ctx, commentText, postText)
}
