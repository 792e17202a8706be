// Package cascade is the retry/fallback state machine shared by the
// availability resolver and the listing scraper: a fixed number of attempts
// per source, a fixed list of sources, linear backoff between attempts, and
// a terminal Exhausted state instead of a thrown failure.
package cascade

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned once every attempt against every source has
// failed. Callers turn it into a typed record, never a panic.
var ErrExhausted = errors.New("all sources exhausted")

type State uint8

const (
	StatePending State = iota
	StateAttempting
	StateSuccess
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Machine tracks position in the attempt grid. It is not safe for
// concurrent use; each resolve owns its own machine.
type Machine struct {
	sources  int
	attempts int

	state   State
	source  int
	attempt int
}

// NewMachine builds a machine for sources × attemptsPerSource tries.
// Both bounds are clamped to at least 1.
func NewMachine(sources, attemptsPerSource int) *Machine {
	if sources < 1 {
		sources = 1
	}
	if attemptsPerSource < 1 {
		attemptsPerSource = 1
	}
	return &Machine{sources: sources, attempts: attemptsPerSource, state: StatePending}
}

func (m *Machine) State() State { return m.state }

// Source reports the index of the source currently being attempted.
func (m *Machine) Source() int { return m.source }

// Attempt reports the 1-based attempt number against the current source.
func (m *Machine) Attempt() int { return m.attempt }

// Begin moves Pending → Attempting on the first source. It reports whether
// an attempt may proceed.
func (m *Machine) Begin() bool {
	if m.state != StatePending {
		return m.state == StateAttempting
	}
	m.state = StateAttempting
	m.source = 0
	m.attempt = 1
	return true
}

// Succeed marks the current attempt successful; the machine is terminal
// afterwards.
func (m *Machine) Succeed() {
	if m.state == StateAttempting {
		m.state = StateSuccess
	}
}

// Fail records a failed attempt and advances: retry the same source while
// attempts remain, then the next source, then Exhausted. It reports whether
// another attempt is available.
func (m *Machine) Fail() bool {
	if m.state != StateAttempting {
		return false
	}
	if m.attempt < m.attempts {
		m.attempt++
		return true
	}
	if m.source < m.sources-1 {
		m.source++
		m.attempt = 1
		return true
	}
	m.state = StateExhausted
	return false
}

// SkipSource abandons the remaining attempts against the current source and
// moves straight to the next one. Used when a source fails in a way retrying
// cannot fix (a structurally-invalid payload, an upstream error page).
func (m *Machine) SkipSource() bool {
	if m.state != StateAttempting {
		return false
	}
	if m.source < m.sources-1 {
		m.source++
		m.attempt = 1
		return true
	}
	m.state = StateExhausted
	return false
}

// Runner drives a Machine with linear backoff. Backoff sleeps
// attempt × BackoffStep before each retry of the same source; switching
// source restarts the ramp.
type Runner struct {
	AttemptsPerSource int
	BackoffStep       time.Duration

	// Permanent reports errors that should skip the rest of a source's
	// attempts. Nil treats every failure as retryable.
	Permanent func(error) bool
}

// Run tries fn across sources until it succeeds or the grid is exhausted.
// fn receives the source index. The first error per source is kept as the
// representative cause inside the returned ErrExhausted.
func (r Runner) Run(ctx context.Context, sources int, fn func(ctx context.Context, source int) error) error {
	step := r.BackoffStep
	if step <= 0 {
		step = 100 * time.Millisecond
	}
	m := NewMachine(sources, r.AttemptsPerSource)
	if !m.Begin() {
		return ErrExhausted
	}

	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, m.Source())
		if err == nil {
			m.Succeed()
			return nil
		}
		lastErr = err

		var more bool
		if r.Permanent != nil && r.Permanent(err) {
			more = m.SkipSource()
		} else {
			more = m.Fail()
		}
		if !more {
			return errors.Join(ErrExhausted, lastErr)
		}

		// Linear backoff only between attempts on the same source.
		if m.Attempt() > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(m.Attempt()-1) * step):
			}
		}
	}
}
