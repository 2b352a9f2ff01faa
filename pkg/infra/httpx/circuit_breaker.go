package httpx

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreaker shields the upstream origin from connection storms: after
// MaxFailures consecutive errors the breaker opens and calls fail fast until
// the cooldown elapses.
type CircuitBreaker interface {
	Execute(fn func() error) error
}

type BreakerSettings struct {
	Name        string
	Cooldown    time.Duration
	MaxFailures uint32
}

type breakerWrapper struct {
	breaker *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(settings BreakerSettings) CircuitBreaker {
	return &breakerWrapper{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        settings.Name,
			MaxRequests: 5,
			Timeout:     settings.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.MaxFailures
			},
		}),
	}
}

func (b *breakerWrapper) Execute(fn func() error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("breaker (%s): %w", b.breaker.Name(), err)
	}
	return nil
}

// IsOpen reports whether err was produced by a tripped breaker rather than
// the wrapped call itself.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
