package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestPolicyDo(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		p := Policy{Attempts: 3, Delay: time.Millisecond}
		err := p.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("returns last error unwrapped", func(t *testing.T) {
		p := Policy{Attempts: 2, Delay: time.Millisecond}
		err := p.Do(context.Background(), func() error { return errTransient })
		if !errors.Is(err, errTransient) {
			t.Errorf("expected errTransient, got %v", err)
		}
	})

	t.Run("RetryIf stops on permanent errors", func(t *testing.T) {
		permanent := errors.New("permanent")
		calls := 0
		p := Policy{Attempts: 5, Delay: time.Millisecond}.WithRetryIf(func(err error) bool {
			return errors.Is(err, errTransient)
		})
		err := p.Do(context.Background(), func() error {
			calls++
			return permanent
		})
		if !errors.Is(err, permanent) {
			t.Errorf("expected permanent error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("zero attempts runs once", func(t *testing.T) {
		calls := 0
		_ = Policy{}.Do(context.Background(), func() error {
			calls++
			return errTransient
		})
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}

func TestPoll(t *testing.T) {
	p := Poll(time.Second, 30*time.Second)
	if p.Attempts != 30 {
		t.Errorf("expected 30 attempts, got %d", p.Attempts)
	}
	if !p.Fixed {
		t.Error("expected fixed delay")
	}

	if got := Poll(time.Second, 0).Attempts; got != 1 {
		t.Errorf("expected 1 attempt for zero timeout, got %d", got)
	}
}
