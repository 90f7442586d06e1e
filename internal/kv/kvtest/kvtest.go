// Package kvtest holds a behavioural test suite shared by every kv.Store
// implementation.
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"taskplane/internal/kv"
)

// Run exercises s against the kv.Store contract. newStore must return an
// empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Run("PutMergesFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Put(ctx, "task:1", map[string]string{"status": "pending", "qty": "1"}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := s.Put(ctx, "task:1", map[string]string{"status": "running"}); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := s.GetAll(ctx, "task:1")
		if err != nil {
			t.Fatalf("GetAll: %v", err)
		}
		if got["status"] != "running" {
			t.Errorf("status = %q, want running", got["status"])
		}
		if got["qty"] != "1" {
			t.Errorf("qty = %q, want 1", got["qty"])
		}
	})

	t.Run("GetAllMissing", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetAll(context.Background(), "job:missing")
		if err != nil {
			t.Fatalf("GetAll: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("GetAll(missing) = %v, want empty map", got)
		}
	})

	t.Run("QueueFIFO", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, v := range []string{"a", "b", "c"} {
			if err := s.EnqueueBack(ctx, "queue:j1", v); err != nil {
				t.Fatalf("EnqueueBack: %v", err)
			}
		}
		if n, err := s.Len(ctx, "queue:j1"); err != nil || n != 3 {
			t.Fatalf("Len = %d, %v; want 3", n, err)
		}

		for _, want := range []string{"a", "b", "c"} {
			got, err := s.DequeueFront(ctx, "queue:j1")
			if err != nil {
				t.Fatalf("DequeueFront: %v", err)
			}
			if got != want {
				t.Errorf("DequeueFront = %q, want %q", got, want)
			}
		}

		if _, err := s.DequeueFront(ctx, "queue:j1"); !errors.Is(err, kv.ErrEmpty) {
			t.Errorf("DequeueFront on drained queue = %v, want ErrEmpty", err)
		}
		if n, _ := s.Len(ctx, "queue:j1"); n != 0 {
			t.Errorf("Len after drain = %d, want 0", n)
		}
	})

	t.Run("DequeueMissingQueue", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.DequeueFront(context.Background(), "queue:none"); !errors.Is(err, kv.ErrEmpty) {
			t.Errorf("got %v, want ErrEmpty", err)
		}
	})

	t.Run("ScanKeysByPrefix", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		s.Put(ctx, "job:1", map[string]string{"site": "site-1"})
		s.Put(ctx, "job:2", map[string]string{"site": "site-2"})
		s.Put(ctx, "task:1", map[string]string{"job_id": "1"})
		s.EnqueueBack(ctx, "queue:1", "t1")

		keys, err := s.ScanKeys(ctx, "job:")
		if err != nil {
			t.Fatalf("ScanKeys: %v", err)
		}
		sort.Strings(keys)
		if len(keys) != 2 || keys[0] != "job:1" || keys[1] != "job:2" {
			t.Errorf("ScanKeys(job:) = %v, want [job:1 job:2]", keys)
		}
	})

	t.Run("ScanKeysReturnsEachKeyOnce", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 1200
		for round := 0; round < 2; round++ {
			for i := 0; i < n; i++ {
				key := fmt.Sprintf("task:%04d", i)
				if err := s.Put(ctx, key, map[string]string{"job_id": "j1", "round": fmt.Sprint(round)}); err != nil {
					t.Fatalf("Put: %v", err)
				}
			}
		}

		keys, err := s.ScanKeys(ctx, "task:")
		if err != nil {
			t.Fatalf("ScanKeys: %v", err)
		}
		seen := make(map[string]bool, len(keys))
		for _, k := range keys {
			if seen[k] {
				t.Fatalf("ScanKeys returned %s twice", k)
			}
			seen[k] = true
		}
		if len(keys) != n {
			t.Errorf("ScanKeys returned %d keys, want %d", len(keys), n)
		}
	})

	t.Run("ConcurrentDequeueIsDisjoint", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 200
		for i := 0; i < n; i++ {
			if err := s.EnqueueBack(ctx, "queue:race", fmt.Sprintf("t%d", i)); err != nil {
				t.Fatalf("EnqueueBack: %v", err)
			}
		}

		var (
			mu   sync.Mutex
			seen = make(map[string]int)
			wg   sync.WaitGroup
		)
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					v, err := s.DequeueFront(ctx, "queue:race")
					if errors.Is(err, kv.ErrEmpty) {
						return
					}
					if err != nil {
						t.Errorf("DequeueFront: %v", err)
						return
					}
					mu.Lock()
					seen[v]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if len(seen) != n {
			t.Errorf("dequeued %d distinct values, want %d", len(seen), n)
		}
		for v, c := range seen {
			if c != 1 {
				t.Errorf("value %s dequeued %d times", v, c)
			}
		}
	})
}
