// Package translate is the translation boundary. The engine is an opaque
// asynchronous collaborator; the pipeline never blocks a cycle on it and
// never force-cancels an in-flight request. Superseded results are
// discarded post-hoc by the orchestrator's staleness check.
package translate

import (
	"context"

	"github.com/lenslate/lenslate/internal/resilience"
)

// Translator converts a single text to the target language. Implementations
// are synchronous; the orchestrator runs each request on its own goroutine.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	// Health reports whether the engine can currently serve requests.
	Health(ctx context.Context) error
}

// Resilient wraps a Translator with retry and a circuit breaker so a dead
// sidecar fails fast instead of stacking goroutines behind timeouts.
type Resilient struct {
	inner   Translator
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// NewResilient wraps t with the translation-tuned resilience settings.
func NewResilient(t Translator) *Resilient {
	return &Resilient{
		inner:   t,
		breaker: resilience.New(resilience.TranslateConfig()),
		retry:   resilience.TranslateRetryConfig(),
	}
}

// Translate runs the wrapped call under breaker and retry.
func (r *Resilient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return resilience.ExecuteWithResult(r.breaker, func() (string, error) {
		var out string
		err := resilience.Retry(ctx, r.retry, func() error {
			var err error
			out, err = r.inner.Translate(ctx, text, sourceLang, targetLang)
			return err
		})
		return out, err
	})
}

// Health defers to the wrapped translator; a fast-failing breaker counts as
// unhealthy.
func (r *Resilient) Health(ctx context.Context) error {
	if err := r.breaker.Allow(); err != nil {
		return err
	}
	return r.inner.Health(ctx)
}
