package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// BreakerConfig configures the circuit breaker around an oracle
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens
	MaxFailures uint32        `json:"max_failures" yaml:"max_failures"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
}

// BreakerOracle fails fast once the wrapped oracle keeps failing, instead of
// letting every run wait on a dead provider.
type BreakerOracle struct {
	inner   Oracle
	breaker *gobreaker.CircuitBreaker[*Response]
}

func NewBreakerOracle(inner Oracle, cfg BreakerConfig) *BreakerOracle {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "oracle:" + inner.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		// a cancelled caller says nothing about the provider's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerOracle{inner: inner, breaker: cb}
}

func (b *BreakerOracle) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := b.breaker.Execute(func() (*Response, error) {
		return b.inner.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s circuit open: %w", ErrOracleUnavailable, b.inner.Name(), err)
		}
		if !errors.Is(err, ErrOracleUnavailable) {
			return nil, unavailable(b.inner.Name(), err)
		}
		return nil, err
	}
	return resp, nil
}

func (b *BreakerOracle) Name() string { return b.inner.Name() }

// State returns the current circuit state for health reporting
func (b *BreakerOracle) State() gobreaker.State {
	return b.breaker.State()
}

var (
	_ Oracle = (*OpenAIOracle)(nil)
	_ Oracle = (*AnthropicOracle)(nil)
	_ Oracle = (*BreakerOracle)(nil)
)
