package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/skinmate/internal/domain/model"
)

func candidate(id, concern string, score float64, active bool) model.MentorCandidate {
	return model.MentorCandidate{
		ID: id, UserID: "u-" + id, PrimaryConcern: concern, SkinScore: score,
		IsActive: active, SubjectActive: true,
	}
}

func TestMemoryMentorStore_TopCandidate(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryMentorStore(
		candidate("a80", "acne", 80, true),
		candidate("a40", "acne", 40, true),
		candidate("a95", "acne", 95, false),
		candidate("p99", "pores", 99, true),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, found, err := store.TopCandidate(ctx, "acne", 50)
	if err != nil || !found {
		t.Fatalf("expected a candidate, got found=%v err=%v", found, err)
	}
	if got.ID != "a80" {
		t.Errorf("expected a80, got %s", got.ID)
	}

	if _, found, _ := store.TopCandidate(ctx, "acne", 90); found {
		t.Error("expected no active candidate above 90")
	}
	if _, found, _ := store.TopCandidate(ctx, "acne", 80); found {
		t.Error("expected strict comparison to exclude a score equal to the request")
	}
	if _, found, _ := store.TopCandidate(ctx, "wrinkles", 0); found {
		t.Error("expected no candidate for an unknown concern")
	}
	if n, _ := store.Count(ctx); n != 4 {
		t.Errorf("expected count 4, got %d", n)
	}
}

func TestMemoryMentorStore_Replace(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryMentorStore(candidate("x", "acne", 70, true))

	if err := store.Add(candidate("x", "redness", 75, true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, found, _ := store.TopCandidate(ctx, "acne", 0); found {
		t.Error("expected replaced candidate to leave its old concern")
	}
	if got, found, _ := store.TopCandidate(ctx, "redness", 0); !found || got.SkinScore != 75 {
		t.Errorf("expected replaced candidate under redness, got %+v", got)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}

	if err := store.Add(model.MentorCandidate{ID: "bad"}); !errors.Is(err, ErrInvalidCandidate) {
		t.Errorf("expected ErrInvalidCandidate, got %v", err)
	}
}

func TestMemoryMentorStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryMentorStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Add(candidate(fmt.Sprintf("c%d", i), "acne", float64(i), true))
		}(i)
		go func() {
			defer wg.Done()
			_, _, _ = store.TopCandidate(ctx, "acne", 5)
		}()
	}
	wg.Wait()

	got, found, _ := store.TopCandidate(ctx, "acne", 5)
	if !found || got.ID != "c19" {
		t.Errorf("expected c19 on top, got %+v", got)
	}
}

func TestLoadMentorSeed(t *testing.T) {
	list, err := LoadMentorSeed("testdata/mentors.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 mentors, got %d", len(list))
	}
	first := list[0]
	if first.ID != "tip-1" || first.SkinScore != 82 || !first.IsActive {
		t.Errorf("unexpected first mentor: %+v", first)
	}
	if first.ProcedureName == nil || *first.ProcedureName != "Chemical peel" {
		t.Errorf("expected procedure name, got %v", first.ProcedureName)
	}
	if first.SubjectBirthYear == nil || *first.SubjectBirthYear != 1994 {
		t.Errorf("expected birth year 1994, got %v", first.SubjectBirthYear)
	}
	if list[1].ProcedureName != nil {
		t.Errorf("expected nil procedure for second mentor, got %v", *list[1].ProcedureName)
	}

	if _, err := LoadMentorSeed("testdata/missing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMemoryReportStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore(2)

	for _, id := range []string{"j1", "j2", "j3"} {
		if err := store.Save(ctx, model.Report{JobID: id, SkinScore: 50}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if store.Count(ctx) != 2 {
		t.Errorf("expected capacity to cap the store at 2, got %d", store.Count(ctx))
	}
	if _, err := store.Get(ctx, "j1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected oldest report evicted, got %v", err)
	}
	if r, err := store.Get(ctx, "j3"); err != nil || r.JobID != "j3" {
		t.Errorf("expected j3, got %+v %v", r, err)
	}
	if err := store.Save(ctx, model.Report{}); !errors.Is(err, ErrInvalidReport) {
		t.Errorf("expected ErrInvalidReport, got %v", err)
	}
}
