package sendero

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInflightOwnership(t *testing.T) {
	tracker := newInflightTracker()

	_, owner := tracker.getOrCreate("fp")
	if !owner {
		t.Fatal("Expected first caller to own the send")
	}

	_, owner = tracker.getOrCreate("fp")
	if owner {
		t.Error("Expected second caller to join, not own")
	}

	// A different fingerprint gets its own entry.
	_, owner = tracker.getOrCreate("other")
	if !owner {
		t.Error("Expected independent ownership per fingerprint")
	}
}

func TestInflightWaitReceivesResult(t *testing.T) {
	tracker := newInflightTracker()

	entry, _ := tracker.getOrCreate("fp")
	joined, _ := tracker.getOrCreate("fp")
	if entry != joined {
		t.Fatal("Expected joiners to share the owner's entry")
	}

	want := &DispatchResult{Success: true, MessageID: "msg-1"}
	go func() {
		time.Sleep(10 * time.Millisecond)
		tracker.complete("fp", want, nil)
	}()

	got, err := joined.wait(context.Background())
	if err != nil {
		t.Fatalf("wait() failed: %v", err)
	}
	if got.MessageID != "msg-1" {
		t.Errorf("Expected the owner's result, got %+v", got)
	}
}

func TestInflightWaitReceivesError(t *testing.T) {
	tracker := newInflightTracker()

	entry, _ := tracker.getOrCreate("fp")
	sendErr := errors.New("delivery failed")
	tracker.complete("fp", nil, sendErr)

	_, err := entry.wait(context.Background())
	if !errors.Is(err, sendErr) {
		t.Errorf("Expected the owner's error, got %v", err)
	}
}

func TestInflightCompleteClearsEntry(t *testing.T) {
	tracker := newInflightTracker()

	tracker.getOrCreate("fp")
	tracker.complete("fp", &DispatchResult{}, nil)

	// The fingerprint is free again; the next caller owns a fresh send.
	if _, owner := tracker.getOrCreate("fp"); !owner {
		t.Error("Expected ownership after completion")
	}
}

func TestInflightWaitHonorsContext(t *testing.T) {
	tracker := newInflightTracker()

	entry, _ := tracker.getOrCreate("fp")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := entry.wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context deadline error, got %v", err)
	}
}

func TestInflightCompleteUnknownFingerprint(t *testing.T) {
	tracker := newInflightTracker()

	// Completing a fingerprint nobody owns must not panic.
	tracker.complete("ghost", nil, nil)
}
