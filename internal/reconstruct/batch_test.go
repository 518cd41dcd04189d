package reconstruct

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestSplitBatches(t *testing.T) {
	got, err := splitBatches(5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []batchRange{
		{From: 0, To: 2},
		{From: 2, To: 4},
		{From: 4, To: 5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("batches mismatch: %+v != %+v", got, want)
	}
}

func TestSplitBatchesSingle(t *testing.T) {
	got, err := splitBatches(3, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []batchRange{{From: 0, To: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("batches mismatch: %+v != %+v", got, want)
	}
}

func TestSplitBatchesInvalid(t *testing.T) {
	if _, err := splitBatches(10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
	if _, err := splitBatches(-1, 1); err == nil {
		t.Fatalf("expected error for negative count")
	}
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, 5, time.Hour, func(context.Context) error {
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestWithRetryDoesNotRetryContextErrors(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		attempts++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) || attempts != 1 {
		t.Fatalf("expected one attempt with deadline error, got %d: %v", attempts, err)
	}
}
