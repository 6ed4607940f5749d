package validation

// Verdict is the outcome of validating one produced result.
type Verdict struct {
	Valid  bool
	Reason string
}

// Attempt records one execute+validate cycle. Attempt numbers are 1-based.
type Attempt[T any] struct {
	Number int
	Result T
	Valid  bool
	Reason string
}

// History is the append-only record of attempts within one retry-loop
// invocation. It is owned by that invocation and never shared across
// concurrent attempts; producers receive it read-only so they can adapt
// to prior failures.
type History[T any] struct {
	attempts []Attempt[T]
}

// Len returns the number of recorded attempts.
func (h *History[T]) Len() int { return len(h.attempts) }

// NextAttempt returns the 1-based number of the attempt about to run.
func (h *History[T]) NextAttempt() int { return len(h.attempts) + 1 }

// IsRetry reports whether at least one attempt has already run.
func (h *History[T]) IsRetry() bool { return len(h.attempts) > 0 }

// Last returns the most recent attempt, if any.
func (h *History[T]) Last() (Attempt[T], bool) {
	if len(h.attempts) == 0 {
		return Attempt[T]{}, false
	}
	return h.attempts[len(h.attempts)-1], true
}

// FailureReasons returns the reasons of all invalid attempts, in order.
func (h *History[T]) FailureReasons() []string {
	reasons := make([]string, 0, len(h.attempts))
	for _, a := range h.attempts {
		if !a.Valid {
			reasons = append(reasons, a.Reason)
		}
	}
	return reasons
}

// Attempts returns a copy of all recorded attempts.
func (h *History[T]) Attempts() []Attempt[T] {
	out := make([]Attempt[T], len(h.attempts))
	copy(out, h.attempts)
	return out
}

func (h *History[T]) append(a Attempt[T]) {
	h.attempts = append(h.attempts, a)
}
