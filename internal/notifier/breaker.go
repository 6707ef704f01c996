package notifier

import (
	"sync"
	"time"
)

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

// breaker stops deliveries to an endpoint after repeated failures and lets
// one probe through once recovery has elapsed.
type breaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       circuitState

	threshold int
	recovery  time.Duration
	now       func() time.Time
}

func newBreaker(threshold int, recovery time.Duration) *breaker {
	return &breaker{threshold: threshold, recovery: recovery, now: time.Now}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if b.now().Sub(b.lastFailure) <= b.recovery {
			return false
		}
		b.state = stateHalfOpen
	}
	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = stateClosed
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	if b.state == stateHalfOpen || b.failures >= b.threshold {
		b.state = stateOpen
	}
}

func (b *breaker) open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen
}
