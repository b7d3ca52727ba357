package generation

import (
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Default retry policy values.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialDelay   = time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// RetryPolicy bounds the attempt loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt. It doubles for every
	// following attempt. Zero retries immediately.
	InitialDelay time.Duration
	// AttemptTimeout bounds each attempt individually.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns three attempts, a one second initial delay and a
// thirty second per-attempt timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialDelay:   DefaultInitialDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Validate checks that the policy can drive a loop.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if p.InitialDelay < 0 {
		return errors.New("initial delay cannot be negative")
	}
	if p.AttemptTimeout <= 0 {
		return errors.New("attempt timeout must be positive")
	}
	return nil
}

// Verdict classifies the result of one attempt.
type Verdict int

const (
	// VerdictSuccess ends the loop with a result.
	VerdictSuccess Verdict = iota
	// VerdictRetryable permits another attempt if the budget allows.
	VerdictRetryable
	// VerdictTerminal ends the loop with the attempt's error.
	VerdictTerminal
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictRetryable:
		return "retryable"
	case VerdictTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one attempt. Err is nil exactly when
// Verdict is VerdictSuccess.
type Outcome struct {
	Verdict Verdict
	Err     *Error
}

// Success returns a successful Outcome.
func Success() Outcome {
	return Outcome{Verdict: VerdictSuccess}
}

// Retryable returns an Outcome that permits another attempt.
func Retryable(err *Error) Outcome {
	return Outcome{Verdict: VerdictRetryable, Err: err}
}

// Terminal returns an Outcome that ends the loop.
func Terminal(err *Error) Outcome {
	return Outcome{Verdict: VerdictTerminal, Err: err}
}

// RetryState is the explicit state of one attempt loop: the index of the
// current attempt, the delay scheduled before it, the last retryable failure
// and, once the loop stops, the final error. A RetryState belongs to a single
// call and is not safe for concurrent use.
type RetryState struct {
	policy  RetryPolicy
	backoff retry.Backoff

	attempt int
	delay   time.Duration
	delays  []time.Duration
	lastErr *Error
	final   *Error
	done    bool
}

// NewRetryState starts a loop at attempt 0 under policy. A MaxAttempts below
// 1 is treated as 1.
func NewRetryState(policy RetryPolicy) *RetryState {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var base retry.Backoff
	if policy.InitialDelay > 0 {
		base = retry.NewExponential(policy.InitialDelay)
	} else {
		base = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}

	return &RetryState{
		policy:  policy,
		backoff: retry.WithMaxRetries(uint64(policy.MaxAttempts-1), base),
	}
}

// Attempt returns the 0-based index of the current attempt.
func (s *RetryState) Attempt() int { return s.attempt }

// MaxAttempts returns the attempt budget.
func (s *RetryState) MaxAttempts() int { return s.policy.MaxAttempts }

// Delay returns the backoff delay scheduled before the current attempt.
func (s *RetryState) Delay() time.Duration { return s.delay }

// Delays returns every backoff delay scheduled so far, in order.
func (s *RetryState) Delays() []time.Duration {
	return append([]time.Duration(nil), s.delays...)
}

// LastError returns the most recent retryable failure, if any.
func (s *RetryState) LastError() *Error { return s.lastErr }

// Done reports whether the loop has stopped.
func (s *RetryState) Done() bool { return s.done }

// Err returns the final error once the loop has stopped on a failure. It is
// nil while the loop runs and after a success.
func (s *RetryState) Err() *Error { return s.final }

// Advance records the outcome of the current attempt. When another attempt is
// permitted it moves to it and returns the delay to wait first and true.
// Otherwise it stops the loop and returns false; Err then holds the terminal
// error, or a MAX_RETRIES_EXCEEDED error carrying the last retryable failure.
func (s *RetryState) Advance(o Outcome) (time.Duration, bool) {
	if s.done {
		return 0, false
	}

	switch o.Verdict {
	case VerdictSuccess:
		s.stop(nil)
		return 0, false

	case VerdictRetryable:
		s.lastErr = o.Err
		if s.attempt+1 >= s.policy.MaxAttempts {
			s.stop(s.exhausted())
			return 0, false
		}
		next, stop := s.backoff.Next()
		if stop {
			s.stop(s.exhausted())
			return 0, false
		}
		s.attempt++
		s.delay = next
		s.delays = append(s.delays, next)
		return next, true

	default:
		err := o.Err
		if err == nil {
			err = NewError(CodeNetwork, "attempt failed without an error", nil)
		}
		s.stop(err)
		return 0, false
	}
}

func (s *RetryState) stop(err *Error) {
	s.done = true
	s.final = err
}

func (s *RetryState) exhausted() *Error {
	var cause error
	if s.lastErr != nil {
		cause = s.lastErr
	}
	return NewError(CodeRetriesExhausted, "", cause)
}
