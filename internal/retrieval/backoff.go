package retrieval

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays: Base doubled per attempt, capped at Max,
// with up to half the delay shaved off as jitter so concurrent tasks do not
// retry in lockstep.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// jitter returns a value in [0, 1). Overridable in tests; nil uses
	// the package-level source.
	jitter func() float64
}

// NextDelay returns the wait before retry number attempt (zero-based, i.e.
// the delay taken after attempt failures).
func (b Backoff) NextDelay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	delay := b.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			delay = b.Max
			break
		}
	}

	jitter := b.jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	// Spread over [delay/2, delay].
	half := delay / 2
	return half + time.Duration(jitter()*float64(half))
}
