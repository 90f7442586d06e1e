package kv_test

import (
	"context"
	"testing"

	"taskplane/internal/kv"
	"taskplane/internal/kv/kvtest"
)

func TestMemory(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return kv.NewMemory()
	})
}

func TestMemory_GetAllReturnsCopy(t *testing.T) {
	m := kv.NewMemory()
	ctx := context.Background()

	m.Put(ctx, "agent:a1", map[string]string{"name": "one"})

	got, _ := m.GetAll(ctx, "agent:a1")
	got["name"] = "mutated"

	again, _ := m.GetAll(ctx, "agent:a1")
	if again["name"] != "one" {
		t.Errorf("stored record changed through returned map: %q", again["name"])
	}
}
