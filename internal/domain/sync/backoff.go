package sync

import (
	"math"
	"time"
)

const (
	DefaultBackoffBase   = 30 * time.Second
	DefaultBackoffMax    = 15 * time.Minute
	DefaultBackoffJitter = 0.2
)

// Backoff экспоненциальная задержка с потолком и симметричным джиттером
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:   DefaultBackoffBase,
		Max:    DefaultBackoffMax,
		Jitter: DefaultBackoffJitter,
	}
}

// NextDelayMs задержка перед попыткой attempt (с нуля).
// randomFactor из [0,1]: 0 дает -Jitter, 1 дает +Jitter. Функция чистая.
func (b Backoff) NextDelayMs(attempt int, randomFactor float64) int64 {
	if attempt < 0 {
		attempt = 0
	}
	if randomFactor < 0 {
		randomFactor = 0
	} else if randomFactor > 1 {
		randomFactor = 1
	}

	base := float64(b.Base.Milliseconds())
	maxDelay := float64(b.Max.Milliseconds())

	exp := base * math.Pow(2, float64(attempt))
	if math.IsInf(exp, 0) || exp > maxDelay {
		exp = maxDelay
	}

	delay := exp + exp*b.Jitter*(2*randomFactor-1)
	if delay < 0 {
		return 0
	}
	return int64(math.Floor(delay))
}

func (b Backoff) Delay(attempt int, randomFactor float64) time.Duration {
	return time.Duration(b.NextDelayMs(attempt, randomFactor)) * time.Millisecond
}
