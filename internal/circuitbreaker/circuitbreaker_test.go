package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("metadata API unavailable")

func newTestBreaker(now *time.Time) *CircuitBreaker {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
	})
	cb.now = func() time.Time { return *now }
	return cb
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	if cb.GetState() != StateClosed {
		t.Error("Expected new breaker to start closed")
	}
	if err := cb.Call(succeed); err != nil {
		t.Errorf("Expected call to pass, got %v", err)
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		if err := cb.Call(fail); !errors.Is(err, errUpstream) {
			t.Fatalf("Expected upstream error, got %v", err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatal("Expected breaker open after threshold failures")
	}
	if err := cb.Call(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	cb.Call(fail)
	cb.Call(fail)
	cb.Call(succeed)
	cb.Call(fail)
	cb.Call(fail)

	if cb.GetState() != StateClosed {
		t.Error("Expected breaker closed, failures were interleaved with success")
	}
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		cb.Call(fail)
	}
	if err := cb.Call(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected rejection while open, got %v", err)
	}

	now = now.Add(2 * time.Minute)

	// First probe transitions to half-open; two successes close it.
	if err := cb.Call(succeed); err != nil {
		t.Fatalf("Expected half-open probe to pass, got %v", err)
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatal("Expected half-open state after probe")
	}
	if err := cb.Call(succeed); err != nil {
		t.Fatalf("Expected second probe to pass, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Error("Expected breaker closed after success threshold")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		cb.Call(fail)
	}
	now = now.Add(2 * time.Minute)

	if err := cb.Call(fail); !errors.Is(err, errUpstream) {
		t.Fatalf("Expected upstream error from half-open probe, got %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Error("Expected breaker to reopen on half-open failure")
	}
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := New(Config{Name: "defaults"})

	if cb.failureThreshold != 5 || cb.successThreshold != 2 || cb.timeout != 60*time.Second {
		t.Errorf("Unexpected defaults: %d/%d/%s", cb.failureThreshold, cb.successThreshold, cb.timeout)
	}
}
