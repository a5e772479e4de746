package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySuccessOnFirstTry(t *testing.T) {
	retrier := NewDefaultRetrier()

	counter := 0
	err := retrier.Do(context.Background(), func() error {
		counter++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counter != 1 {
		t.Errorf("expected 1 attempt, got %d", counter)
	}
}

func TestRetrySuccessAfterRetries(t *testing.T) {
	retrier := NewDefaultRetrier()

	counter := 0
	err := retrier.Do(context.Background(), func() error {
		counter++
		if counter < 2 {
			return errors.New("temporary error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counter != 2 {
		t.Errorf("expected 2 attempts, got %d", counter)
	}
}

func TestRetryMaxRetriesExceeded(t *testing.T) {
	config := NewDefaultConfig()
	config.MaxRetries = 2
	retrier := NewRetrier(config)

	expectedErr := errors.New("permanent error")
	counter := 0
	err := retrier.Do(context.Background(), func() error {
		counter++
		return expectedErr
	})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
	if counter != 3 { // initial try + 2 retries
		t.Errorf("expected 3 attempts, got %d", counter)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	retrier := NewDefaultRetrier()

	err := retrier.Do(ctx, func() error {
		cancel()
		return errors.New("operation error after cancel")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetryBackoff(t *testing.T) {
	config := &Config{
		MaxRetries:    2,
		BackoffFactor: 2.0,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		Jitter:        50 * time.Millisecond,
	}
	retrier := NewRetrier(config)

	start := time.Now()
	counter := 0
	_ = retrier.Do(context.Background(), func() error {
		counter++
		return errors.New("error")
	})
	elapsed := time.Since(start)

	// Two delays: 100ms and 200ms, each plus up to 50ms jitter.
	if elapsed < 300*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("expected total delay between 300ms and 500ms, got %v", elapsed)
	}
	if counter != 3 {
		t.Errorf("expected 3 attempts, got %d", counter)
	}
}
