package visqueue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSubmitRunsInlineWhenVisible(t *testing.T) {
	q := New(true)

	v, err := q.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "ran", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ran" {
		t.Errorf("expected inline result, got %v", v)
	}
	if q.Len() != 0 {
		t.Errorf("nothing should be queued, Len=%d", q.Len())
	}
}

func TestSubmitDefersWhenHidden(t *testing.T) {
	q := New(false)

	done := make(chan any, 1)
	go func() {
		v, err := q.Submit(context.Background(), func(ctx context.Context) (any, error) {
			return "deferred", nil
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- v
	}()

	// The task must not run while hidden.
	select {
	case <-done:
		t.Fatal("task ran while hidden")
	case <-time.After(50 * time.Millisecond):
	}

	q.SetVisible(true)
	select {
	case v := <-done:
		if v != "deferred" {
			t.Errorf("expected deferred result, got %v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued task never drained after visibility restore")
	}
}

func TestDrainOrderOldestFirst(t *testing.T) {
	q := New(false)

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup

	// Enqueue one at a time so FIFO order is deterministic.
	names := []string{"A", "B", "C"}
	for i, name := range names {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Submit(context.Background(), func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return name, nil
			})
		}()
		waitForLen(t, q, i+1)
	}

	q.SetVisible(true)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "A" || order[1] != "B" || order[2] != "C" {
		t.Errorf("expected drain order A,B,C got %v", order)
	}
}

func TestSubmitCancelledWhileQueued(t *testing.T) {
	q := New(false)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Submit(ctx, func(ctx context.Context) (any, error) {
			return "never", nil
		})
		errCh <- err
	}()
	waitForLen(t, q, 1)

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled submit never returned")
	}

	// Draining later must skip the cancelled task without blocking.
	q.SetVisible(true)
	waitForLen(t, q, 0)
}

func TestSetVisibleNoQueueNoDrain(t *testing.T) {
	q := New(false)
	q.SetVisible(true)
	if !q.Visible() {
		t.Error("expected visible after SetVisible(true)")
	}
	q.SetVisible(false)
	if q.Visible() {
		t.Error("expected hidden after SetVisible(false)")
	}
}

// waitForLen polls until the queue holds want items or the deadline hits.
func waitForLen(t *testing.T, q *Queue, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if q.Len() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("queue never reached length %d (have %d)", want, q.Len())
}
