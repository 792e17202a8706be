package cascade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineExhaustsAfterExactGrid(t *testing.T) {
	cases := []struct {
		sources  int
		attempts int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{2, 4},
	}
	for _, tc := range cases {
		m := NewMachine(tc.sources, tc.attempts)
		require.True(t, m.Begin())

		tries := 0
		for {
			tries++
			if !m.Fail() {
				break
			}
		}
		assert.Equal(t, tc.sources*tc.attempts, tries)
		assert.Equal(t, StateExhausted, m.State())
	}
}

func TestMachineSuccessIsTerminal(t *testing.T) {
	m := NewMachine(2, 2)
	require.True(t, m.Begin())
	m.Succeed()
	assert.Equal(t, StateSuccess, m.State())
	assert.False(t, m.Fail())
	assert.Equal(t, StateSuccess, m.State())
}

func TestMachineAdvancesSourceAfterAttempts(t *testing.T) {
	m := NewMachine(2, 2)
	require.True(t, m.Begin())
	assert.Equal(t, 0, m.Source())
	assert.Equal(t, 1, m.Attempt())

	require.True(t, m.Fail())
	assert.Equal(t, 0, m.Source())
	assert.Equal(t, 2, m.Attempt())

	require.True(t, m.Fail())
	assert.Equal(t, 1, m.Source())
	assert.Equal(t, 1, m.Attempt())
}

func TestMachineSkipSource(t *testing.T) {
	m := NewMachine(2, 3)
	require.True(t, m.Begin())
	require.True(t, m.SkipSource())
	assert.Equal(t, 1, m.Source())
	assert.False(t, m.SkipSource())
	assert.Equal(t, StateExhausted, m.State())
}

func TestRunnerStopsOnFirstSuccess(t *testing.T) {
	r := Runner{AttemptsPerSource: 2, BackoffStep: time.Millisecond}
	var calls []int
	err := r.Run(context.Background(), 3, func(_ context.Context, source int) error {
		calls = append(calls, source)
		if source == 1 {
			return nil
		}
		return errors.New("boom")
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1}, calls)
}

func TestRunnerExhaustedCarriesCause(t *testing.T) {
	r := Runner{AttemptsPerSource: 2, BackoffStep: time.Millisecond}
	cause := errors.New("no route to host")
	tries := 0
	err := r.Run(context.Background(), 2, func(_ context.Context, _ int) error {
		tries++
		return cause
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 4, tries)
}

func TestRunnerPermanentSkipsSource(t *testing.T) {
	perm := errors.New("bad payload")
	r := Runner{
		AttemptsPerSource: 3,
		BackoffStep:       time.Millisecond,
		Permanent:         func(err error) bool { return errors.Is(err, perm) },
	}
	var calls []int
	err := r.Run(context.Background(), 2, func(_ context.Context, source int) error {
		calls = append(calls, source)
		return perm
	})
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, []int{0, 1}, calls)
}

func TestRunnerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := Runner{AttemptsPerSource: 5, BackoffStep: 10 * time.Millisecond}
	tries := 0
	err := r.Run(ctx, 5, func(_ context.Context, _ int) error {
		tries++
		cancel()
		return errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tries)
}
