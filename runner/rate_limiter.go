package runner

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Wait(ctx context.Context, domain string) error
	Close()
}

type globalRateLimiter struct {
	limiter *rate.Limiter
}

func newGlobalRateLimiter(requestsPerSecond int) RateLimiter {
	if requestsPerSecond <= 0 {
		return &noRateLimiter{}
	}

	return &globalRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (r *globalRateLimiter) Wait(ctx context.Context, domain string) error {
	return r.limiter.Wait(ctx)
}

func (r *globalRateLimiter) Close() {}

// domainRateLimiter allows maxRequests per window for each host, bursting up to maxRequests.
type domainRateLimiter struct {
	every   rate.Limit
	burst   int
	domains map[string]*rate.Limiter
	mu      sync.Mutex
}

func newDomainRateLimiter(maxRequests int, window time.Duration) RateLimiter {
	if maxRequests <= 0 || window <= 0 {
		return &noRateLimiter{}
	}

	return &domainRateLimiter{
		every:   rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
		domains: make(map[string]*rate.Limiter),
	}
}

func (r *domainRateLimiter) limiterFor(domain string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.domains[domain]
	if !ok {
		limiter = rate.NewLimiter(r.every, r.burst)
		r.domains[domain] = limiter
	}
	return limiter
}

func (r *domainRateLimiter) Wait(ctx context.Context, domain string) error {
	return r.limiterFor(domain).Wait(ctx)
}

func (r *domainRateLimiter) Close() {}

type noRateLimiter struct{}

func (r *noRateLimiter) Wait(ctx context.Context, domain string) error {
	return ctx.Err()
}

func (r *noRateLimiter) Close() {}
