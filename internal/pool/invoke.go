package pool

import (
	"fmt"
	"time"
)

// InvokeAll submits every submission and waits for all of them with a shared
// time budget. On budget exhaustion every still-pending future is cancelled
// with interruption and timedOut is true. A timeout of zero waits without
// limit. The returned futures are in submission order.
func (p *Pool) InvokeAll(subs []*Submission, timeout time.Duration) (futures []*Future, timedOut bool, err error) {
	futures = make([]*Future, 0, len(subs))
	for _, sub := range subs {
		f, err := p.Submit(sub)
		if err != nil {
			for _, submitted := range futures {
				submitted.Cancel(true)
			}
			return nil, false, err
		}
		futures = append(futures, f)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for _, f := range futures {
		if !timedOut {
			if timeout <= 0 {
				<-f.Done()
				continue
			}
			remaining := time.Until(deadline)
			if remaining > 0 {
				if _, err := f.GetWithTimeout(remaining); err != ErrTimeout {
					continue
				}
			}
			timedOut = true
		}
		f.Cancel(true)
	}
	return futures, timedOut, nil
}

// InvokeAny submits every submission and returns the first successful result,
// cancelling the rest. With no success it returns ErrTimeout if the budget
// ran out, or the last failure if every submission failed. A timeout of zero
// waits without limit.
func (p *Pool) InvokeAny(subs []*Submission, timeout time.Duration) (any, error) {
	type outcome struct {
		result any
		err    error
	}

	futures := make([]*Future, 0, len(subs))
	for _, sub := range subs {
		f, err := p.Submit(sub)
		if err != nil {
			for _, submitted := range futures {
				submitted.Cancel(true)
			}
			return nil, err
		}
		futures = append(futures, f)
	}
	if len(futures) == 0 {
		return nil, fmt.Errorf("no submissions to invoke")
	}

	results := make(chan outcome, len(futures))
	for _, f := range futures {
		go func(f *Future) {
			r, err := f.Get()
			results <- outcome{result: r, err: err}
		}(f)
	}

	cancelAll := func() {
		for _, f := range futures {
			f.Cancel(true)
		}
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var lastErr error
	for received := 0; received < len(futures); received++ {
		select {
		case o := <-results:
			if o.err == nil {
				cancelAll()
				return o.result, nil
			}
			lastErr = o.err
		case <-timeoutCh:
			cancelAll()
			return nil, ErrTimeout
		}
	}
	return nil, lastErr
}
