package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3, Timeout: time.Minute, MaxRequests: 2, Logger: zerolog.Nop()})

	failing := errors.New("boom")
	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return failing }); err != failing {
			t.Fatalf("Execute attempt %d: got %v, want the injected failure", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("GetState() = %v, want StateOpen after %d consecutive failures", cb.GetState(), 3)
	}

	if err := cb.Execute(func() error { return nil }); err == nil {
		t.Error("expected the open breaker to reject a call without invoking fn")
	}
}

func TestCircuitBreakerClosedStateResetsFailuresOnSuccess(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3, Timeout: time.Minute, MaxRequests: 2, Logger: zerolog.Nop()})
	failing := errors.New("boom")

	_ = cb.Execute(func() error { return failing })
	_ = cb.Execute(func() error { return failing })
	_ = cb.Execute(func() error { return nil }) // success resets the consecutive-failure count

	_ = cb.Execute(func() error { return failing })
	_ = cb.Execute(func() error { return failing })
	if cb.GetState() != StateClosed {
		t.Errorf("GetState() = %v, want StateClosed (a success should have reset the failure count)", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond, MaxRequests: 1, Logger: zerolog.Nop()})
	failing := errors.New("boom")

	_ = cb.Execute(func() error { return failing })
	if cb.GetState() != StateOpen {
		t.Fatalf("GetState() = %v, want StateOpen", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected a half-open probe to be allowed through, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("GetState() = %v, want StateClosed after %d successful half-open request(s)", cb.GetState(), 1)
	}
}

func TestCircuitBreakerDefaultConfigFillsZeroValues(t *testing.T) {
	cb := New(Config{Name: "test", Logger: zerolog.Nop()})
	if cb.config.MaxFailures != 5 || cb.config.Timeout != 30*time.Second || cb.config.MaxRequests != 3 {
		t.Errorf("zero-value Config was not filled with defaults: %+v", cb.config)
	}
}
