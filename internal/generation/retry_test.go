package generation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverFault() *Error {
	return NewError(CodeNetwork, "HTTP 500", errors.New("internal"))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.AttemptTimeout)
	assert.NoError(t, p.Validate())
}

func TestRetryPolicy_Validate(t *testing.T) {
	assert.Error(t, RetryPolicy{MaxAttempts: 0, AttemptTimeout: time.Second}.Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: 1, InitialDelay: -1, AttemptTimeout: time.Second}.Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: 1}.Validate())
	assert.NoError(t, RetryPolicy{MaxAttempts: 1, AttemptTimeout: time.Second}.Validate())
}

func TestRetryState_SuccessFirstAttempt(t *testing.T) {
	s := NewRetryState(DefaultRetryPolicy())

	delay, again := s.Advance(Success())

	assert.False(t, again)
	assert.Zero(t, delay)
	assert.True(t, s.Done())
	assert.Nil(t, s.Err())
	assert.Equal(t, 0, s.Attempt())
}

func TestRetryState_BackoffDoubles(t *testing.T) {
	s := NewRetryState(RetryPolicy{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, AttemptTimeout: time.Second})

	var got []time.Duration
	for i := 0; i < 4; i++ {
		delay, again := s.Advance(Retryable(serverFault()))
		require.True(t, again)
		got = append(got, delay)
		assert.Equal(t, i+1, s.Attempt())
		assert.Equal(t, delay, s.Delay())
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
	assert.Equal(t, want, got)
	assert.Equal(t, want, s.Delays())

	_, again := s.Advance(Success())
	assert.False(t, again)
	assert.Nil(t, s.Err())
}

func TestRetryState_Exhaustion(t *testing.T) {
	s := NewRetryState(DefaultRetryPolicy())
	timeout := NewError(CodeTimeout, "", nil)

	_, again := s.Advance(Retryable(timeout))
	require.True(t, again)
	_, again = s.Advance(Retryable(timeout))
	require.True(t, again)
	delay, again := s.Advance(Retryable(timeout))

	assert.False(t, again)
	assert.Zero(t, delay, "no backoff after the final attempt")
	assert.Equal(t, 2, s.Attempt())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, s.Delays())

	require.NotNil(t, s.Err())
	assert.Equal(t, CodeRetriesExhausted, s.Err().Code)
	assert.Same(t, timeout, s.LastError())
	assert.ErrorIs(t, s.Err(), ErrTimeout, "exhaustion carries the last cause")
}

func TestRetryState_TerminalStopsImmediately(t *testing.T) {
	s := NewRetryState(DefaultRetryPolicy())
	rejected := NewError(CodeUpstreamClient, "API key not valid", nil)

	_, again := s.Advance(Terminal(rejected))

	assert.False(t, again)
	assert.Same(t, rejected, s.Err())
	assert.Empty(t, s.Delays())
	assert.Nil(t, s.LastError())
}

func TestRetryState_TerminalAfterRetry(t *testing.T) {
	s := NewRetryState(DefaultRetryPolicy())

	_, again := s.Advance(Retryable(serverFault()))
	require.True(t, again)
	_, again = s.Advance(Terminal(NewError(CodeEmptyGeneration, "", nil)))

	assert.False(t, again)
	assert.Equal(t, CodeEmptyGeneration, s.Err().Code)
	assert.Equal(t, 1, s.Attempt())
}

func TestRetryState_AdvanceAfterDone(t *testing.T) {
	s := NewRetryState(DefaultRetryPolicy())
	s.Advance(Success())

	_, again := s.Advance(Retryable(serverFault()))
	assert.False(t, again)
	assert.Nil(t, s.Err())
}

func TestRetryState_SingleAttempt(t *testing.T) {
	s := NewRetryState(RetryPolicy{MaxAttempts: 1, InitialDelay: time.Second, AttemptTimeout: time.Second})

	_, again := s.Advance(Retryable(serverFault()))

	assert.False(t, again)
	assert.Equal(t, CodeRetriesExhausted, s.Err().Code)
}

func TestRetryState_ZeroDelay(t *testing.T) {
	s := NewRetryState(RetryPolicy{MaxAttempts: 3, AttemptTimeout: time.Second})

	d1, again := s.Advance(Retryable(serverFault()))
	require.True(t, again)
	d2, again := s.Advance(Retryable(serverFault()))
	require.True(t, again)

	assert.Zero(t, d1)
	assert.Zero(t, d2)
}

func TestRetryState_TerminalWithoutError(t *testing.T) {
	s := NewRetryState(DefaultRetryPolicy())
	s.Advance(Outcome{Verdict: VerdictTerminal})
	require.NotNil(t, s.Err())
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "success", VerdictSuccess.String())
	assert.Equal(t, "retryable", VerdictRetryable.String())
	assert.Equal(t, "terminal", VerdictTerminal.String())
	assert.Equal(t, "unknown", Verdict(42).String())
}
