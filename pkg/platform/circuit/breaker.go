// Package circuit provides a two-state circuit breaker for sinks that have a
// fallback path.
package circuit

import "sync"

type State int

const (
	// StateClosed sends work down the primary path.
	StateClosed State = iota
	// StateOpen sends work to the fallback while the primary is probed.
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Transition is reported when a Record call changes the state.
type Transition struct {
	From, To State
}

// Changed reports whether the breaker moved.
func (t Transition) Changed() bool { return t.From != t.To }

// Breaker opens after FailureThreshold consecutive failures and closes again
// after SuccessThreshold consecutive successes while open. While open every
// ProbeEvery-th call is still let through to the primary so it can recover.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failures         int
	successes        int
	skipped          int
	failureThreshold int
	successThreshold int
	probeEvery       int
}

type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithProbeEvery sets how often an open breaker lets a call through.
func WithProbeEvery(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.probeEvery = n
		}
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 3,
		probeEvery:       10,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether the next call should use the primary path.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	b.skipped++
	if b.skipped >= b.probeEvery {
		b.skipped = 0
		return true
	}
	return false
}

// Record feeds the result of a primary call back into the breaker.
func (b *Breaker) Record(err error) Transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	from := b.state

	if err != nil {
		b.failures++
		b.successes = 0
		if b.state == StateClosed && b.failures >= b.failureThreshold {
			b.state = StateOpen
			b.skipped = 0
		}
		return Transition{From: from, To: b.state}
	}

	if b.state == StateClosed {
		b.failures = 0
		return Transition{From: from, To: b.state}
	}
	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.failures = 0
		b.successes = 0
	}
	return Transition{From: from, To: b.state}
}
