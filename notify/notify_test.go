package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEnsureListeningIsIdempotent(t *testing.T) {
	n := New(func(int) {})
	defer n.Close()
	for i := 0; i < 10; i++ {
		if err := n.EnsureListening(); err != nil {
			t.Fatalf("ensure %d: %v", i, err)
		}
	}
	n.mu.Lock()
	starts := n.starts
	n.mu.Unlock()
	if starts != 1 {
		t.Errorf("expected exactly one listener start, got %d", starts)
	}
	if !n.Listening() {
		t.Error("expected Listening to report true")
	}
}

func TestCompletionReportedOnceAndSignalReusable(t *testing.T) {
	reports := make(chan int, 8)
	n := New(func(result int) { reports <- result })
	defer n.Close()
	if err := n.EnsureListening(); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	sig := n.Arm()
	if !sig.Armed() {
		t.Fatal("expected signal armed after Arm")
	}
	sig.Fire(StepsCompleted)

	select {
	case r := <-reports:
		if r != StepsCompleted {
			t.Errorf("expected StepsCompleted got %d", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion never reported")
	}

	// exactly once: no second report arrives for a single fire
	select {
	case r := <-reports:
		t.Fatalf("unexpected extra report %d", r)
	case <-time.After(50 * time.Millisecond):
	}

	// the signal returns to idle and can be re-armed for the next move
	deadline := time.Now().Add(2 * time.Second)
	for sig.Armed() {
		if time.Now().After(deadline) {
			t.Fatal("signal never returned to idle")
		}
		time.Sleep(time.Millisecond)
	}
	n.Arm()
	sig.Fire(StepsCompleted)
	select {
	case <-reports:
	case <-time.After(2 * time.Second):
		t.Fatal("re-armed completion never reported")
	}
}

func TestCloseMakesListenerUnavailable(t *testing.T) {
	n := New(func(int) {})
	n.Close()
	err := n.EnsureListening()
	if !errors.Is(err, ErrNotificationUnavailable) {
		t.Errorf("expected ErrNotificationUnavailable, got %v", err)
	}
	if n.Listening() {
		t.Error("expected Listening false after Close")
	}
}

func TestSignalWaitHonorsContext(t *testing.T) {
	sig := NewSignal()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := sig.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestFireOnFullSlotIsDropped(t *testing.T) {
	sig := NewSignal()
	sig.Arm()
	sig.Fire(StepsCompleted)
	sig.Fire(Stalled) // slot already full, dropped

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := sig.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if result != StepsCompleted {
		t.Errorf("expected first result to win, got %d", result)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := sig.Wait(ctx2); err == nil {
		t.Error("expected empty slot after consuming the first result")
	}
}
