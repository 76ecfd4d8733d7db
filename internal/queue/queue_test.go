package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueuePushPopFIFO(t *testing.T) {
	t.Parallel()

	q := New(4)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := q.Push(ctx, RunRecord{Kind: KindRun, ID: id}); err != nil {
			t.Fatalf("Push %s: %v", id, err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("expected len 3, got %d", q.Len())
	}

	for _, want := range []string{"r1", "r2", "r3"} {
		rec, ok, err := q.Pop(ctx, time.Second)
		if err != nil || !ok {
			t.Fatalf("Pop: ok=%v err=%v", ok, err)
		}
		if rec.ID != want {
			t.Fatalf("expected %s, got %s", want, rec.ID)
		}
	}
}

func TestQueuePopTimeout(t *testing.T) {
	t.Parallel()

	q := New(1)
	start := time.Now()
	_, ok, err := q.Pop(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if ok {
		t.Fatal("expected timeout with empty queue")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("Pop returned before timeout")
	}
}

func TestQueuePopCancelled(t *testing.T) {
	t.Parallel()

	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, ok, err := q.Pop(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ok {
		t.Fatal("expected no record")
	}
}

func TestQueuePushFullRespectsContext(t *testing.T) {
	t.Parallel()

	q := New(1)
	if err := q.Push(context.Background(), RunRecord{Kind: KindRun, ID: "r1"}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if q.Len() != q.Cap() {
		t.Fatalf("expected full queue, len=%d cap=%d", q.Len(), q.Cap())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Push(ctx, RunRecord{Kind: KindRun, ID: "r2"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestQueueRejectsRecordWithoutID(t *testing.T) {
	t.Parallel()

	q := New(0)
	if q.Cap() != DefaultCapacity {
		t.Fatalf("expected default capacity, got %d", q.Cap())
	}
	if err := q.Push(context.Background(), RunRecord{Kind: KindRun}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"run", "resume", "stop", "exit"} {
		k, err := ParseKind(s)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", s, err)
		}
		if string(k) != s {
			t.Fatalf("ParseKind(%q) = %q", s, k)
		}
	}
	if _, err := ParseKind("pause"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !KindResume.Promotable() || KindStop.Promotable() {
		t.Fatal("unexpected Promotable result")
	}
}
