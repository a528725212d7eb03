package reconnect

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxUncapped bounds delays when Max is not set.
const maxUncapped = 24 * time.Hour

// Backoff configures exponentially growing delays with optional jitter.
type Backoff struct {
	Initial    time.Duration `mapstructure:"initial"`
	Max        time.Duration `mapstructure:"max"`
	Multiplier float64       `mapstructure:"multiplier"`
	// Jitter spreads each delay uniformly over ±Jitter of its value, in [0, 1].
	Jitter float64 `mapstructure:"jitter"`
}

// DefaultBackoff starts at one second and caps at thirty.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// exponential builds the policy for one Run. A zero maxElapsed never gives up.
func (b Backoff) exponential(maxElapsed time.Duration, clock backoff.Clock) *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Initial
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = time.Second
	}
	eb.Multiplier = b.Multiplier
	if eb.Multiplier < 1 {
		eb.Multiplier = 2
	}
	eb.MaxInterval = b.Max
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = maxUncapped
	}
	eb.RandomizationFactor = clamp(b.Jitter, 0, 1)
	eb.MaxElapsedTime = maxElapsed
	if clock != nil {
		eb.Clock = clock
	}
	eb.Reset()
	return eb
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
