package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"shortform-pipeline/provider"
)

func TestRetryTransientThenSuccess(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}
	attempts := 0
	retries, err := p.Do(context.Background(), "test", func(context.Context) error {
		attempts++
		if attempts <= 2 {
			return errors.Join(provider.ErrServiceUnavailable, errors.New("flaky"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if retries != 2 {
		t.Fatalf("expected 2 retries consumed, got %d", retries)
	}
}

func TestRetryNonRetryableFailsImmediately(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}
	attempts := 0
	retries, err := p.Do(context.Background(), "test", func(context.Context) error {
		attempts++
		return NewValidationError("bad input")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("non-retryable error retried: %d attempts", attempts)
	}
	if retries != 0 {
		t.Fatalf("non-retryable error consumed %d retries, want 0", retries)
	}
	if Classify(err) != ClassValidation {
		t.Fatalf("error class changed to %s", Classify(err))
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}
	attempts := 0
	retries, err := p.Do(context.Background(), "test", func(context.Context) error {
		attempts++
		return errors.Join(provider.ErrServiceUnavailable, errors.New("still down"))
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
	if retries != 2 {
		t.Fatalf("expected 2 retries consumed, got %d", retries)
	}
}

func TestRetryRenderErrorsAreRetryable(t *testing.T) {
	p := RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}
	attempts := 0
	_, err := p.Do(context.Background(), "render", func(context.Context) error {
		attempts++
		if attempts == 1 {
			return NewRenderError(errors.New("worker crashed"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorClass
	}{
		{NewValidationError("x"), ClassValidation},
		{NewConsistencyError("x"), ClassConsistency},
		{NewRenderError(errors.New("x")), ClassRender},
		{errors.Join(provider.ErrServiceUnavailable, errors.New("x")), ClassTransient},
		{context.DeadlineExceeded, ClassTransient},
		{errors.New("boom"), ClassInternal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
