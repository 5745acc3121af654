package oracle

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := newBreaker(3, 100*time.Millisecond)
	if b.currentState() != StateClosed {
		t.Errorf("expected closed, got %v", b.currentState())
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b := newBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 3; i++ {
		if err := b.execute(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}
	if b.currentState() != StateOpen {
		t.Errorf("expected open after 3 failures, got %v", b.currentState())
	}

	// Rejected immediately while open.
	if err := b.execute(func() error { return nil }); err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := newBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 2; i++ {
		b.execute(func() error { return errFail })
	}
	if b.currentState() != StateOpen {
		t.Fatal("expected open")
	}

	time.Sleep(60 * time.Millisecond)

	// Probe succeeds and closes the circuit.
	if err := b.execute(func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if b.currentState() != StateClosed {
		t.Errorf("expected closed after successful probe, got %v", b.currentState())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := newBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 2; i++ {
		b.execute(func() error { return errFail })
	}
	time.Sleep(60 * time.Millisecond)

	b.execute(func() error { return errFail })
	if b.currentState() != StateOpen {
		t.Errorf("expected open after failed probe, got %v", b.currentState())
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	b.execute(func() error { return errFail })
	b.execute(func() error { return errFail })
	b.execute(func() error { return nil })
	b.execute(func() error { return errFail })
	b.execute(func() error { return errFail })

	if b.currentState() != StateClosed {
		t.Errorf("interleaved success must reset the failure count, got %v", b.currentState())
	}
}
