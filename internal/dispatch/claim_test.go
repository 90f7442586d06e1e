package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"taskplane/internal/catalog"
	"taskplane/internal/kv"
	redisstore "taskplane/internal/kv/redis"
	"taskplane/internal/store"

	"github.com/alicebob/miniredis/v2"
)

func TestClaimNext_Scenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if err := env.engine.RegisterAgent(ctx, "A1", "box", []string{"site-1"}); err != nil {
		t.Fatal(err)
	}
	jobID := env.createJob(t, "site-1", 5, "only")

	task, err := env.engine.ClaimNext(ctx, "A1", []string{"site-1"})
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if task == nil {
		t.Fatal("expected a task")
	}
	if task.Status != store.TaskStatusRunning || task.AssignedTo != "A1" {
		t.Errorf("unexpected claimed task %+v", task)
	}
	if task.JobID != jobID || task.Site != "site-1" || task.FirstName != "only" {
		t.Errorf("claimed task missing fields: %+v", task)
	}
	if task.ClaimedAt == nil || !task.ClaimedAt.Equal(env.clock.Now()) {
		t.Errorf("expected claimed_at to be set, got %v", task.ClaimedAt)
	}

	stored, err := env.engine.repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != store.TaskStatusRunning || stored.AssignedTo != "A1" {
		t.Errorf("claim not persisted: %+v", stored)
	}

	again, err := env.engine.ClaimNext(ctx, "A1", []string{"site-1"})
	if err != nil {
		t.Fatal(err)
	}
	if again != nil {
		t.Errorf("expected no task, got %+v", again)
	}
}

func TestClaimNext_CapabilityFiltering(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.engine.catalog = catalog.New(map[string]map[int]string{
		"site-1": {5: "http://one"},
		"site-2": {5: "http://two"},
	})

	env.createJob(t, "site-1", 5, "a", "b")
	env.createJob(t, "site-2", 5, "c", "d")

	for i := 0; i < 2; i++ {
		task, err := env.engine.ClaimNext(ctx, "A2", []string{"site-2"})
		if err != nil {
			t.Fatal(err)
		}
		if task == nil || task.Site != "site-2" || task.ProductLink != "http://two" {
			t.Fatalf("expected site-2 task, got %+v", task)
		}
	}

	task, err := env.engine.ClaimNext(ctx, "A2", []string{"site-2", "site-3"})
	if err != nil {
		t.Fatal(err)
	}
	if task != nil {
		t.Errorf("site-2 agent received %+v", task)
	}

	none, err := env.engine.ClaimNext(ctx, "A0", nil)
	if err != nil || none != nil {
		t.Errorf("expected nothing for empty caps, got %+v %v", none, err)
	}
}

func TestClaimNext_OldestJobFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := env.createJob(t, "site-1", 5, "a")
	env.clock.Advance(time.Second)
	second := env.createJob(t, "site-1", 10, "b")

	got1, _ := env.engine.ClaimNext(ctx, "A1", []string{"site-1"})
	got2, _ := env.engine.ClaimNext(ctx, "A1", []string{"site-1"})
	if got1 == nil || got1.JobID != first {
		t.Errorf("expected first job's task, got %+v", got1)
	}
	if got2 == nil || got2.JobID != second {
		t.Errorf("expected second job's task, got %+v", got2)
	}
}

func TestClaimNext_SkipsNonRunnableJobs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	jobID := env.createJob(t, "site-1", 5, "a")
	job, _ := env.engine.repo.GetJob(ctx, jobID)
	job.Status = store.JobStatusDone
	if err := env.engine.repo.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	task, err := env.engine.ClaimNext(ctx, "A1", []string{"site-1"})
	if err != nil {
		t.Fatal(err)
	}
	if task != nil {
		t.Errorf("expected done job to be skipped, got %+v", task)
	}

	depth, _ := env.engine.queue.Depth(ctx, jobID)
	if depth != 1 {
		t.Errorf("expected queue untouched, got depth %d", depth)
	}
}

func TestClaimNext_DropsStaleIDs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	jobID := env.createJob(t, "site-1", 5, "a", "b")
	tasks, _ := env.engine.repo.ListTasksForJob(ctx, jobID)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	// The first queued task is already terminal and a ghost id trails the queue.
	tasks[0].Status = store.TaskStatusSuccess
	if err := env.engine.repo.UpdateTask(ctx, tasks[0]); err != nil {
		t.Fatal(err)
	}
	ghostQueue := NewQueue(env.store)
	if err := ghostQueue.Enqueue(ctx, jobID, "ghost"); err != nil {
		t.Fatal(err)
	}

	task, err := env.engine.ClaimNext(ctx, "A1", []string{"site-1"})
	if err != nil {
		t.Fatal(err)
	}
	if task == nil || task.ID != tasks[1].ID {
		t.Fatalf("expected second task, got %+v", task)
	}

	done, _ := env.engine.repo.GetTask(ctx, tasks[0].ID)
	if done.Status != store.TaskStatusSuccess || done.AssignedTo != "" {
		t.Errorf("terminal task was reopened: %+v", done)
	}

	// Only the ghost id remains and it is dropped.
	task, err = env.engine.ClaimNext(ctx, "A1", []string{"site-1"})
	if err != nil || task != nil {
		t.Errorf("expected nothing, got %+v %v", task, err)
	}
	if depth, _ := env.engine.queue.Depth(ctx, jobID); depth != 0 {
		t.Errorf("expected drained queue, got %d", depth)
	}
}

func TestClaimNext_Paused(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	jobID := env.createJob(t, "site-1", 5, "a")

	if err := env.engine.Pause(ctx); err != nil {
		t.Fatal(err)
	}

	task, err := env.engine.ClaimNext(ctx, "A1", []string{"site-1"})
	if err != nil || task != nil {
		t.Fatalf("expected no task while paused, got %+v %v", task, err)
	}
	if depth, _ := env.engine.queue.Depth(ctx, jobID); depth != 1 {
		t.Errorf("pause must not consume the queue, depth %d", depth)
	}

	if err := env.engine.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	task, err = env.engine.ClaimNext(ctx, "A1", []string{"site-1"})
	if err != nil || task == nil {
		t.Fatalf("expected task after resume, got %+v %v", task, err)
	}
}

func TestClaimNext_RequiresAgentID(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.ClaimNext(context.Background(), " ", []string{"site-1"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClaimNext_PublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	env.createJob(t, "site-1", 5, "a")

	if _, err := env.engine.ClaimNext(context.Background(), "A1", []string{"site-1"}); err != nil {
		t.Fatal(err)
	}

	got := env.pub.types()
	if len(got) != 2 || got[1] != "task.claimed" {
		t.Errorf("expected task.claimed after job.created, got %v", got)
	}
}

func TestClaimNext_ConcurrentClaimsAreDisjoint(t *testing.T) {
	backends := map[string]func(t *testing.T) kv.Store{
		"memory": func(t *testing.T) kv.Store { return kv.NewMemory() },
		"redis": func(t *testing.T) kv.Store {
			mr := miniredis.RunT(t)
			s, err := redisstore.New(context.Background(), "redis://"+mr.Addr())
			if err != nil {
				t.Fatalf("redis store: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}

	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnvWithStore(t, newStore(t))

			const numTasks = 60
			names := make([]string, numTasks)
			for i := range names {
				names[i] = "n"
			}
			env.createJob(t, "site-1", 5, names...)

			const agents = 8
			var (
				mu      sync.Mutex
				claimed = make(map[string]string)
				dupes   []string
				wg      sync.WaitGroup
			)
			errs := make(chan error, agents)
			for a := 0; a < agents; a++ {
				wg.Add(1)
				go func(agentID string) {
					defer wg.Done()
					for {
						task, err := env.engine.ClaimNext(ctx, agentID, []string{"site-1"})
						if err != nil {
							errs <- err
							return
						}
						if task == nil {
							return
						}
						mu.Lock()
						if prev, ok := claimed[task.ID]; ok {
							dupes = append(dupes, task.ID+" by "+prev+" and "+agentID)
						}
						claimed[task.ID] = agentID
						mu.Unlock()
					}
				}(string(rune('A' + a)))
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				t.Fatalf("claim failed: %v", err)
			}
			if len(dupes) > 0 {
				t.Fatalf("tasks handed out twice: %v", dupes)
			}
			if len(claimed) != numTasks {
				t.Errorf("expected %d claims, got %d", numTasks, len(claimed))
			}
		})
	}
}
