package circuitbreaker

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg.Threshold != 3 {
		t.Errorf("Expected Threshold 3, got %d", cfg.Threshold)
	}
	if cfg.Cooldown != 60*time.Second {
		t.Errorf("Expected Cooldown 60s, got %v", cfg.Cooldown)
	}
}

func TestNew_WithZeroValues(t *testing.T) {
	t.Parallel()
	// Zero values should use defaults
	b := New(Config{Threshold: 0, Cooldown: 0})

	// With default threshold of 3, should need 3 failures to open
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != Closed {
		t.Error("Expected closed state after 2 failures (default threshold is 3)")
	}

	b.RecordFailure()
	if b.State() != Open {
		t.Error("Expected open state after 3 failures")
	}
}

func TestBreaker_ClosedState(t *testing.T) {
	t.Parallel()
	b := New(Config{Threshold: 3, Cooldown: 100 * time.Millisecond})

	// Should allow calls in closed state
	if !b.Allow() {
		t.Error("expected Allow() to return true in closed state")
	}

	// Recording success should keep it closed
	b.RecordSuccess()
	if b.State() != Closed {
		t.Errorf("expected closed state, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()
	b := New(Config{Threshold: 3, Cooldown: 100 * time.Millisecond})

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != Closed {
		t.Error("expected closed state before threshold")
	}

	// Third failure should open the circuit
	b.RecordFailure()
	if b.State() != Open {
		t.Errorf("expected open state after threshold, got %s", b.State())
	}

	// Should not allow calls when open
	if b.Allow() {
		t.Error("expected Allow() to return false when open")
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	t.Parallel()
	b := New(Config{Threshold: 2, Cooldown: 50 * time.Millisecond})

	// Open the circuit
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatal("expected open state")
	}

	// Should not allow before cooldown
	if b.Allow() {
		t.Error("expected Allow() to return false before cooldown")
	}

	// Wait for cooldown
	time.Sleep(60 * time.Millisecond)

	// Should allow one call through (half-open)
	if !b.Allow() {
		t.Error("expected Allow() to return true after cooldown (half-open)")
	}
	if b.State() != HalfOpen {
		t.Errorf("expected half-open state, got %s", b.State())
	}
}

func TestBreaker_ClosesOnSuccessInHalfOpen(t *testing.T) {
	t.Parallel()
	b := New(Config{Threshold: 2, Cooldown: 10 * time.Millisecond})

	b.RecordFailure()
	b.RecordFailure()

	time.Sleep(15 * time.Millisecond)
	b.Allow() // Transition to half-open

	// Success should close the circuit
	b.RecordSuccess()
	if b.State() != Closed {
		t.Errorf("expected closed state after success, got %s", b.State())
	}
}

func TestBreaker_ReopensOnFailureInHalfOpen(t *testing.T) {
	t.Parallel()
	b := New(Config{Threshold: 2, Cooldown: 10 * time.Millisecond})

	b.RecordFailure()
	b.RecordFailure()

	time.Sleep(15 * time.Millisecond)
	b.Allow() // Transition to half-open

	// Failure should reopen
	b.RecordFailure()
	if b.State() != Open {
		t.Errorf("expected open state after failure in half-open, got %s", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()
	b := New(Config{Threshold: 2, Cooldown: time.Second})

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatal("expected open state")
	}

	b.Reset()
	if b.State() != Closed {
		t.Errorf("expected closed state after reset, got %s", b.State())
	}
	if b.Failures() != 0 {
		t.Errorf("expected 0 failures after reset, got %d", b.Failures())
	}
}

func TestBreaker_StateString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state    State
		expected string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}
}
