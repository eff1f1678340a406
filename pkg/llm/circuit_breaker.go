package llm

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/tavolo/pkg/metrics"
	"github.com/harunnryd/tavolo/pkg/resilience"
)

// CircuitBreakerGenerator wraps a TextGenerator with rate-limit circuit breaking.
type CircuitBreakerGenerator struct {
	inner   TextGenerator
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
	open    bool
	mu      sync.Mutex
}

func NewCircuitBreakerGenerator(inner TextGenerator, breaker *resilience.CircuitBreaker) *CircuitBreakerGenerator {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerGenerator{inner: inner, breaker: breaker}
}

func (a *CircuitBreakerGenerator) Name() string { return a.inner.Name() }

// SetObserver allows metrics emission for breaker events.
func (a *CircuitBreakerGenerator) SetObserver(obs metrics.Observer) { a.obs = obs }

func (a *CircuitBreakerGenerator) Generate(ctx context.Context, messages []Message) (Response, error) {
	if !a.breaker.Allow() {
		a.setOpen(true)
		a.record(metrics.EventBreakerDenied)
		return Response{}, resilience.RateLimitError{Provider: a.Name(), Message: "degraded"}
	}
	a.setOpen(false)
	resp, err := a.inner.Generate(ctx, messages)
	if err != nil {
		if resilience.IsRateLimit(err) {
			a.record(metrics.EventRateLimit)
		}
		a.breaker.OnError(err)
		return Response{}, err
	}
	a.breaker.OnSuccess()
	return resp, nil
}

func (a *CircuitBreakerGenerator) record(name string) {
	if a.obs == nil {
		return
	}
	a.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{
			"provider":  a.inner.Name(),
			"component": "llm",
		},
	})
}

func (a *CircuitBreakerGenerator) setOpen(open bool) {
	a.mu.Lock()
	changed := a.open != open
	a.open = open
	a.mu.Unlock()
	if !changed {
		return
	}
	if open {
		a.record(metrics.EventBreakerOpen)
		return
	}
	a.record(metrics.EventBreakerClose)
}
