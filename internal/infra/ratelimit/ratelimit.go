// Package ratelimit provides per-source token-bucket rate limiting for the
// ingestion pipeline's discovery adapters (§4.3) and the external evidence
// adapters (§4.6) — no adapter may exceed its declared requests-per-second.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiters holds one token bucket per named source and hands them out
// lazily using a configured default when a source has no explicit budget.
type Limiters struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	configured map[string]float64
	fallback float64
}

// New builds a Limiters set from a source→requests-per-second map. Sources
// not present in rps use fallback (also requests per second).
func New(rps map[string]float64, fallback float64) *Limiters {
	configured := make(map[string]float64, len(rps))
	for k, v := range rps {
		configured[k] = v
	}
	return &Limiters{
		buckets:    make(map[string]*rate.Limiter),
		configured: configured,
		fallback:   fallback,
	}
}

// Wait blocks until a token is available for source, or ctx is done.
// Adapters block on their own bucket, never on the pipeline (§5).
func (l *Limiters) Wait(ctx context.Context, source string) error {
	return l.bucketFor(source).Wait(ctx)
}

// Allow reports whether a request for source may proceed immediately,
// consuming a token if so.
func (l *Limiters) Allow(source string) bool {
	return l.bucketFor(source).Allow()
}

func (l *Limiters) bucketFor(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[source]; ok {
		return b
	}

	rps := l.fallback
	if v, ok := l.configured[source]; ok {
		rps = v
	}
	// burst of 1 enforces a strict steady-state rate rather than bursting
	// the full per-second budget at once, matching "adaptive budget" intent.
	b := rate.NewLimiter(rate.Limit(rps), 1)
	l.buckets[source] = b
	return b
}
