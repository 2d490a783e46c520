package job

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := NewWithID("job-1", validParams())
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	found, err := repo.FindByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.ID != "job-1" {
		t.Errorf("ID = %s, want job-1", found.ID)
	}

	// Returned jobs are clones: mutating them must not affect the store.
	found.VideoPath = "mutated"
	again, _ := repo.FindByID(ctx, "job-1")
	if again.VideoPath == "mutated" {
		t.Error("repository leaked a mutable reference")
	}
}

func TestMemoryRepository_FindMissing(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "nope")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("FindByID() error = %v, want ErrJobNotFound", err)
	}
}

func TestMemoryRepository_SaveUpdates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := NewWithID("job-1", validParams())
	_ = repo.Save(ctx, j)

	if err := j.Start(); err != nil {
		t.Fatal(err)
	}
	_ = repo.Save(ctx, j)

	found, _ := repo.FindByID(ctx, "job-1")
	if found.Status != StatusRunning {
		t.Errorf("status = %s, want RUNNING after update", found.Status)
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, jid := range []string{"a", "b", "c"} {
		_ = repo.Save(ctx, NewWithID(jid, validParams()))
	}

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("len(jobs) = %d, want 3", len(jobs))
	}
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_ = repo.Save(ctx, NewWithID("job-1", validParams()))

	if err := repo.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "job-1"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("second Delete() error = %v, want ErrJobNotFound", err)
	}
}
