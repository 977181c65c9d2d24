package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestOrchestrator_Run_stopsCleanlyOnCancel(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	collector := NewCollector(rec, []uint32{1, 2}, 2, discardLogger())
	archiver := NewArchiver(&fakeBlobArchiver{}, []uint32{1, 2}, nil, discardLogger())
	o := NewOrchestrator(collector, archiver, time.Hour, "0 3 * * *", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		rec.mu.Lock()
		n := len(rec.seen)
		rec.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("first pass did not complete, saw %d items", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestOrchestrator_Run_badCronFails(t *testing.T) {
	t.Parallel()

	collector := NewCollector(&fakeRecorder{}, []uint32{1}, 1, discardLogger())
	archiver := NewArchiver(&fakeBlobArchiver{}, []uint32{1}, nil, discardLogger())
	o := NewOrchestrator(collector, archiver, time.Hour, "61 * * * *", discardLogger())

	if err := o.Run(context.Background()); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}
