package retention

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRemover struct {
	calls int32
	err   error
}

func (f *fakeRemover) Remove(int64) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func TestSweeperCallsRemoveOnTick(t *testing.T) {
	r := &fakeRemover{}
	s := NewSweeper(r, 10*time.Millisecond, time.Hour, zerolog.Nop())

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&r.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&r.calls) == 0 {
		t.Fatal("expected at least one Remove call before the deadline")
	}
}

func TestSweeperStopHaltsTicking(t *testing.T) {
	r := &fakeRemover{}
	s := NewSweeper(r, 10*time.Millisecond, time.Hour, zerolog.Nop())

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	countAtStop := atomic.LoadInt32(&r.calls)
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&r.calls) != countAtStop {
		t.Error("expected no further Remove calls after Stop")
	}
}

func TestSweeperStartIsIdempotent(t *testing.T) {
	r := &fakeRemover{}
	s := NewSweeper(r, time.Hour, time.Hour, zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	if err := s.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
}

func TestSweeperStopWithoutStartIsNoop(t *testing.T) {
	s := NewSweeper(&fakeRemover{}, time.Hour, time.Hour, zerolog.Nop())
	if err := s.Stop(); err != nil {
		t.Errorf("Stop without Start: %v", err)
	}
}
