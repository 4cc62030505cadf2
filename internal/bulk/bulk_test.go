package bulk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSequentialExecution(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	var executed []string

	op := Operation{Jobs: 1}
	result := op.Execute(context.Background(), items, func(_ context.Context, _ int, item string) error {
		executed = append(executed, item)
		return nil
	})

	if result.TotalItems != 5 || result.Succeeded != 5 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	// Check order is preserved
	for i, item := range items {
		if executed[i] != item {
			t.Errorf("Order not preserved: expected %s at index %d, got %s", item, i, executed[i])
		}
	}
}

func TestParallelExecution(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	out := make([]string, len(items))
	var running, peak int32

	op := Operation{Jobs: 4}
	result := op.Execute(context.Background(), items, func(_ context.Context, i int, item string) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		out[i] = item + "!"
		return nil
	})

	if result.Succeeded != len(items) {
		t.Errorf("Expected %d successes, got %d", len(items), result.Succeeded)
	}
	if peak > 4 {
		t.Errorf("Expected at most 4 concurrent workers, saw %d", peak)
	}
	for i, item := range items {
		if out[i] != item+"!" {
			t.Errorf("out[%d] = %q", i, out[i])
		}
	}
}

func TestErrorsContinueAndStayOrdered(t *testing.T) {
	items := []string{"a", "fail-1", "b", "fail-2", "c"}
	for _, jobs := range []int{1, 3} {
		var mu sync.Mutex
		seen := 0
		op := Operation{Jobs: jobs}
		result := op.Execute(context.Background(), items, func(_ context.Context, _ int, item string) error {
			mu.Lock()
			seen++
			mu.Unlock()
			if len(item) > 1 {
				return errors.New("boom")
			}
			return nil
		})

		if seen != len(items) {
			t.Errorf("jobs=%d: expected every item processed, got %d", jobs, seen)
		}
		if result.Succeeded != 3 || result.Failed != 2 {
			t.Errorf("jobs=%d: unexpected counts %+v", jobs, result)
		}
		if result.Errors[0].Item != "fail-1" || result.Errors[1].Index != 3 {
			t.Errorf("jobs=%d: errors not in item order: %+v", jobs, result.Errors)
		}
	}
}

func TestEmptyItems(t *testing.T) {
	result := Operation{}.Execute(context.Background(), nil, func(context.Context, int, string) error {
		t.Fatal("fn must not be called")
		return nil
	})
	if result.TotalItems != 0 {
		t.Errorf("Expected 0 items, got %d", result.TotalItems)
	}
}
