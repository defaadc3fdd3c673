// Package deadline bounds the run time of expensive computations and
// retries them with a growing budget.
//
// Work functions receive a context and are expected to poll it. Run
// returns as soon as the deadline passes even if the function does not
// cooperate; its goroutine is then abandoned and its result discarded.
package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCeiling is returned by Escalate when every attempt up to the maximum
// budget timed out.
var ErrCeiling = errors.New("deadline: time ceiling reached")

// Policy describes an escalating budget: the first attempt gets Initial,
// each retry Step more, and no attempt gets more than Max. The last
// attempt always gets Max.
type Policy struct {
	Initial time.Duration
	Step    time.Duration
	Max     time.Duration
}

// DefaultPolicy starts at one second and gives up after six.
func DefaultPolicy() Policy {
	return Policy{Initial: time.Second, Step: time.Second, Max: 6 * time.Second}
}

// Fixed returns a policy with a single attempt of d.
func Fixed(d time.Duration) Policy {
	return Policy{Initial: d, Step: d, Max: d}
}

// Attempts returns the budgets Escalate will try, in order.
func (p Policy) Attempts() []time.Duration {
	if p.Initial <= 0 {
		return nil
	}
	max := p.Max
	if max < p.Initial {
		max = p.Initial
	}
	var out []time.Duration
	for d := p.Initial; ; d += p.Step {
		if d >= max || p.Step <= 0 {
			// the ceiling itself always gets one attempt
			return append(out, min(d, max))
		}
		out = append(out, d)
	}
}

type outcome[T any] struct {
	val T
	err error
}

// Run calls fn with a context that expires after d. If fn has not
// returned by then, Run returns context.DeadlineExceeded.
func Run[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	runCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(runCtx)
		done <- outcome[T]{val: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && runCtx.Err() != nil && ctx.Err() == nil {
			// fn gave up because of our deadline
			return zero, fmt.Errorf("%w after %s", context.DeadlineExceeded, d)
		}
		return o.val, o.err
	case <-runCtx.Done():
		select {
		case o := <-done:
			if o.err == nil {
				return o.val, nil
			}
		default:
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", context.DeadlineExceeded, d)
	}
}

// Escalate retries fn under p until one attempt finishes within its
// budget. Only timeouts are retried: any other error is returned
// immediately, as is cancellation of ctx.
func Escalate[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var last error
	for _, d := range p.Attempts() {
		v, err := Run(ctx, d, fn)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		last = err
	}
	if last == nil {
		return zero, fmt.Errorf("%w: empty policy", ErrCeiling)
	}
	return zero, fmt.Errorf("%w: %w", ErrCeiling, last)
}
