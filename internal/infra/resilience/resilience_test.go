package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/resilience"
	"github.com/sony/gobreaker"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block until the context times out
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	// Release one slot
	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

func TestRetryWithBackoff_StopsOnFinalError(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		Retryable:      resilience.IsTransient,
	}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return &domain.ErrUnauthorized{Message: "bad key"}
	})

	var ue *domain.ErrUnauthorized
	if !errors.As(err, &ue) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call for a final error, got %d", calls)
	}
}

func TestRetryWithBackoff_ZeroBackoff(t *testing.T) {
	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), resilience.Config{MaxRetries: 1}, func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 2 {
		t.Errorf("expected 2 calls and an error, got %d / %v", calls, err)
	}
}

func TestExecute_MapsOpenBreaker(t *testing.T) {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "llm",
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 1
		},
	})

	_, err := resilience.Execute(cb, func() (string, error) {
		return "", errors.New("upstream down")
	})
	if err == nil {
		t.Fatal("expected upstream error")
	}

	_, err = resilience.Execute(cb, func() (string, error) {
		return "never", nil
	})
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) || open.Service != "llm" {
		t.Fatalf("expected circuit open for llm, got %v", err)
	}
}

func TestExecute_ReturnsValue(t *testing.T) {
	cb := resilience.NewCircuitBreaker("ok")
	got, err := resilience.Execute(cb, func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("expected 42, got %d / %v", got, err)
	}
}
