package circuit

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/metacache/pkg/errors"
)

var (
	errNetwork  = errors.NewError(errors.ErrCodeNetworkError, "connection reset")
	errNotFound = errors.NewError(errors.ErrCodeObjectNotFound, "no such key")
)

func newTestBreaker(t *testing.T, threshold uint32) (*Breaker, *timeutil.SimulatedClock, *[]State) {
	t.Helper()
	clk := &timeutil.SimulatedClock{}
	clk.SetTime(time.Unix(1700000000, 0))
	var transitions []State
	b := New("s3", Config{
		FailureThreshold: threshold,
		Timeout:          30 * time.Second,
		Clock:            clk,
		OnStateChange: func(_ string, _ State, to State) {
			transitions = append(transitions, to)
		},
	})
	return b, clk, &transitions
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF_OPEN"},
		{State(999), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestNew_Defaults(t *testing.T) {
	b := New("test", Config{})
	assert.Equal(t, "test", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(5), b.config.FailureThreshold)
	assert.Equal(t, 60*time.Second, b.config.Timeout)
	assert.Equal(t, uint32(1), b.config.MaxRequests)
}

func TestIsStoreFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errNetwork, true},
		{"timeout", errors.NewError(errors.ErrCodeOperationTimeout, "slow"), true},
		{"not found", errNotFound, false},
		{"access denied", errors.NewError(errors.ErrCodeAccessDenied, "denied"), false},
		{"plain error", stderrors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStoreFailure(tt.err))
		})
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b, _, transitions := newTestBreaker(t, 3)

	for i := 0; i < 2; i++ {
		assert.Equal(t, errNetwork, b.Execute(func() error { return errNetwork }))
	}
	// a not-found answer proves the store is reachable
	require.NoError(t, b.Allow())
	b.Done(errNotFound)
	assert.Equal(t, uint32(0), b.Counts().ConsecutiveFailures)

	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return errNetwork })
	}
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, []State{StateOpen}, *transitions)

	called := false
	err := b.Execute(func() error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConnectionFailed))
	assert.False(t, errors.IsRetryable(err))
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b, clk, transitions := newTestBreaker(t, 1)

	_ = b.Execute(func() error { return errNetwork })
	require.Equal(t, StateOpen, b.State())

	clk.AdvanceTime(30 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	// one probe at a time
	require.NoError(t, b.Allow())
	assert.Error(t, b.Allow())
	b.Done(nil)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, *transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clk, _ := newTestBreaker(t, 1)

	_ = b.Execute(func() error { return errNetwork })
	clk.AdvanceTime(time.Minute)

	_ = b.Execute(func() error { return errNetwork })
	assert.Equal(t, StateOpen, b.State())

	clk.AdvanceTime(10 * time.Second)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerReset(t *testing.T) {
	b, _, _ := newTestBreaker(t, 1)

	_ = b.Execute(func() error { return errNetwork })
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Counts{}, b.Counts())
	assert.NoError(t, b.Execute(func() error { return nil }))
}
