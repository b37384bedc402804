package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"audiotest/pkg/interfaces"
	"audiotest/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "tests.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTest(id, name string) *types.Test {
	return &types.Test{
		ID:   id,
		Name: name,
		Questions: []types.Question{
			{ID: 1, AudioFile: "q1.mp3", CorrectOption: "B"},
		},
	}
}

func TestPersistAndLoadTest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	original := sampleTest("listening-1", "Listening Practice 1")
	if err := s.PersistTest(ctx, original); err != nil {
		t.Fatalf("Failed to persist test: %v", err)
	}

	loaded, err := s.LoadTest(ctx)
	if err != nil {
		t.Fatalf("Failed to load test: %v", err)
	}
	if loaded.ID != original.ID || loaded.Name != original.Name {
		t.Errorf("Expected %s/%s, got %s/%s", original.ID, original.Name, loaded.ID, loaded.Name)
	}
	if len(loaded.Questions) != 1 {
		t.Fatalf("Expected 1 question, got %d", len(loaded.Questions))
	}
	if loaded.Questions[0].CorrectOption != "B" {
		t.Errorf("Expected correctOption B, got %s", loaded.Questions[0].CorrectOption)
	}
}

func TestLoadTestEmpty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LoadTest(context.Background())
	if !errors.Is(err, interfaces.ErrTestNotFound) {
		t.Errorf("Expected ErrTestNotFound, got %v", err)
	}
}

func TestLoadTestReturnsMostRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PersistTest(ctx, sampleTest("first", "First")); err != nil {
		t.Fatalf("Failed to persist first test: %v", err)
	}
	if err := s.PersistTest(ctx, sampleTest("second", "Second")); err != nil {
		t.Fatalf("Failed to persist second test: %v", err)
	}

	loaded, err := s.LoadTest(ctx)
	if err != nil {
		t.Fatalf("Failed to load test: %v", err)
	}
	if loaded.ID != "second" {
		t.Errorf("Expected most recent test 'second', got %s", loaded.ID)
	}
}

func TestPersistTestReplacesSameID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PersistTest(ctx, sampleTest("listening-1", "Draft")); err != nil {
		t.Fatalf("Failed to persist test: %v", err)
	}
	if err := s.PersistTest(ctx, sampleTest("listening-1", "Final")); err != nil {
		t.Fatalf("Failed to persist replacement: %v", err)
	}

	tests, err := s.ListTests(ctx)
	if err != nil {
		t.Fatalf("Failed to list tests: %v", err)
	}
	if len(tests) != 1 {
		t.Fatalf("Expected 1 test after replacement, got %d", len(tests))
	}
	if tests[0].Name != "Final" {
		t.Errorf("Expected replaced name 'Final', got %s", tests[0].Name)
	}
}

func TestPersistTestRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.PersistTest(ctx, &types.Test{ID: "no-questions", Name: "Empty"})
	if !errors.Is(err, types.ErrEmptyTest) {
		t.Errorf("Expected ErrEmptyTest, got %v", err)
	}

	err = s.PersistTest(ctx, &types.Test{Name: "No ID", Questions: sampleTest("x", "x").Questions})
	if !errors.Is(err, types.ErrInvalidTest) {
		t.Errorf("Expected ErrInvalidTest, got %v", err)
	}
}

func TestListTestsOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.PersistTest(ctx, sampleTest(id, "Test "+id)); err != nil {
			t.Fatalf("Failed to persist test %s: %v", id, err)
		}
	}

	tests, err := s.ListTests(ctx)
	if err != nil {
		t.Fatalf("Failed to list tests: %v", err)
	}
	if len(tests) != 3 {
		t.Fatalf("Expected 3 tests, got %d", len(tests))
	}
	if tests[0].ID != "c" {
		t.Errorf("Expected most recent test first, got %s", tests[0].ID)
	}
}

func TestHealthCheck(t *testing.T) {
	s := openTestStore(t)

	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("Expected healthy store, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	err := s.PersistTest(context.Background(), sampleTest("late", "Late"))
	if err == nil {
		t.Error("Expected persist after close to fail")
	}
}
