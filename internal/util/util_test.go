package util

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	attempts := 0
	cause := errors.New("unauthorized")

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		return Permanent(cause)
	})

	if err != cause {
		t.Errorf("Retry returned %v, want the unwrapped cause", err)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times after a permanent error, want 1", attempts)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiter(60)
	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
	// The first token is available immediately.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rl.Wait(ctx); err != nil {
		t.Errorf("first Wait returned %v", err)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	if rl != nil {
		t.Fatal("NewRateLimiter(0) should disable limiting")
	}
	for i := 0; i < 100; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait on disabled limiter returned %v", err)
		}
	}
}

func TestTradingCalendar(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	cal := NewTradingCalendar([]time.Time{d(2), d(3), d(4), d(5), d(8)})

	if cal.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", cal.Len())
	}
	if i := cal.IndexFrom(d(6)); i != 4 {
		t.Errorf("IndexFrom(Jan 6) = %d, want 4", i)
	}
	if i := cal.IndexFrom(d(9)); i != 5 {
		t.Errorf("IndexFrom(Jan 9) = %d, want 5", i)
	}

	prev, ok := cal.Previous(d(8))
	if !ok || !prev.Equal(d(5)) {
		t.Errorf("Previous(Jan 8) = %v, %v; want Jan 5", prev, ok)
	}
	if _, ok := cal.Previous(d(2)); ok {
		t.Error("Previous(first day) should report false")
	}

	days := cal.Between(d(3), d(5))
	if len(days) != 3 || !days[0].Equal(d(3)) || !days[2].Equal(d(5)) {
		t.Errorf("Between(Jan 3, Jan 5) = %v", days)
	}
	if got := cal.Between(d(4), time.Time{}); len(got) != 3 {
		t.Errorf("Between(Jan 4, zero) returned %d days, want 3", len(got))
	}
	if got := cal.Between(d(9), d(10)); got != nil {
		t.Errorf("Between past end = %v, want nil", got)
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "warn", "text").Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %q", buf.String())
	}

	NewLoggerTo(&buf, "debug", "json").Debug("shown", "k", 1)
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("json output = %q", buf.String())
	}
}
