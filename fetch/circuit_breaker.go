package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// CircuitBreakerFetcher wraps a Fetcher with per-host circuit breakers, so a
// mirror pulling from several channels keeps working when one of them is
// down.
type CircuitBreakerFetcher struct {
	fetcher  *Fetcher
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// NewCircuitBreakerFetcher creates a new circuit breaker wrapper for a fetcher.
func NewCircuitBreakerFetcher(f *Fetcher) *CircuitBreakerFetcher {
	return &CircuitBreakerFetcher{
		fetcher:  f,
		breakers: make(map[string]*circuit.Breaker),
	}
}

// getBreaker returns or creates a circuit breaker for the given host.
func (cbf *CircuitBreakerFetcher) getBreaker(host string) *circuit.Breaker {
	cbf.mu.RLock()
	breaker, exists := cbf.breakers[host]
	cbf.mu.RUnlock()

	if exists {
		return breaker
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := cbf.breakers[host]; exists {
		return breaker
	}

	// Create new circuit breaker with exponential backoff
	// Trips after 5 consecutive failures
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	opts := &circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	}
	breaker = circuit.NewBreakerWithOptions(opts)

	cbf.breakers[host] = breaker
	return breaker
}

// Fetch wraps the underlying fetcher's Fetch with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Artifact, error) {
	host := extractHost(fetchURL)
	breaker := cbf.getBreaker(host)

	// Check if circuit is open
	if !breaker.Ready() {
		return nil, fmt.Errorf("circuit breaker open for host %s: %w", host, ErrUpstreamDown)
	}

	// Attempt fetch
	var artifact *Artifact
	err := breaker.Call(func() error {
		var fetchErr error
		artifact, fetchErr = cbf.fetcher.Fetch(ctx, fetchURL)
		return fetchErr
	}, 0)

	if err != nil {
		return nil, err
	}

	return artifact, nil
}

// Head wraps the underlying fetcher's Head with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Head(ctx context.Context, headURL string) (size int64, contentType string, err error) {
	host := extractHost(headURL)
	breaker := cbf.getBreaker(host)

	if !breaker.Ready() {
		return 0, "", fmt.Errorf("circuit breaker open for host %s: %w", host, ErrUpstreamDown)
	}

	err = breaker.Call(func() error {
		var headErr error
		size, contentType, headErr = cbf.fetcher.Head(ctx, headURL)
		return headErr
	}, 0)

	return size, contentType, err
}

// extractHost extracts a host identifier from a URL for circuit breaker grouping.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		// Fallback to simple truncation
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// GetBreakerState returns the current state of circuit breakers (for health checks).
func (cbf *CircuitBreakerFetcher) GetBreakerState() map[string]string {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make(map[string]string)
	for host, breaker := range cbf.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
