package deadline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicy_Attempts(t *testing.T) {
	p := Policy{Initial: time.Second, Step: time.Second, Max: 3 * time.Second}
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, p.Attempts())

	require.Len(t, Fixed(time.Millisecond).Attempts(), 1)
	require.Len(t, DefaultPolicy().Attempts(), 6)
	require.Empty(t, Policy{}.Attempts())

	// a step past the ceiling is clamped to it
	p = Policy{Initial: 10 * time.Second, Step: 3 * time.Minute, Max: 3 * time.Minute}
	require.Equal(t, []time.Duration{10 * time.Second, 3 * time.Minute}, p.Attempts())
	p = Policy{Initial: time.Second, Step: 2 * time.Second, Max: 4 * time.Second}
	require.Equal(t, []time.Duration{time.Second, 3 * time.Second, 4 * time.Second}, p.Attempts())
}

func TestRun_Completes(t *testing.T) {
	v, err := Run(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestRun_TimesOutUncooperativeWork(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	_, err := Run(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-block
		return 0, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestRun_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, time.Second, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEscalate_GrowsBudget(t *testing.T) {
	p := Policy{Initial: 10 * time.Millisecond, Step: 30 * time.Millisecond, Max: 200 * time.Millisecond}

	v, err := Escalate(context.Background(), p, func(ctx context.Context) (string, error) {
		select {
		case <-time.After(25 * time.Millisecond):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	require.NoError(t, err)
	require.Equal(t, "done", v)
}

func TestEscalate_Ceiling(t *testing.T) {
	p := Policy{Initial: 5 * time.Millisecond, Step: 5 * time.Millisecond, Max: 15 * time.Millisecond}
	start := time.Now()
	_, err := Escalate(context.Background(), p, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, ErrCeiling)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestEscalate_DoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Escalate(context.Background(), DefaultPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}
