package main

import (
	"errors"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty p50 = %v", got)
	}
}

func TestRunPhaseCountsFailures(t *testing.T) {
	stats := runPhase(100, 4, 10, func(idx int) error {
		if idx%2 == 0 {
			return errors.New("even")
		}
		return nil
	})
	if stats.ops != 100 {
		t.Fatalf("expected 100 ops, got %d", stats.ops)
	}
	if stats.failures <= 0 || stats.failures >= 100 {
		t.Fatalf("expected some failures, got %d", stats.failures)
	}
}
