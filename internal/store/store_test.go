package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mindmirror/mindmirror/internal/models"
)

func sampleReflection(id, userHash string, createdAt time.Time) models.Reflection {
	return models.Reflection{
		ID:         id,
		UserHash:   userHash,
		Summary:    "Q1: first answer\nQ2: second answer",
		Comment:    "A short closing comment.",
		Factors: []models.EnrichedFactor{
			{Name: "anger", Roots: []string{"aversion"}},
			{Name: "restlessness", Roots: []string{"delusion"}},
		},
		Categories: []string{"work"},
		Roots:      []string{"aversion"},
		CreatedAt:  createdAt,
	}
}

func TestInMemoryStoreCountSince(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.SaveReflection(ctx, sampleReflection("r1", "user_aaaa", now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("SaveReflection failed: %v", err)
	}
	if err := s.SaveReflection(ctx, sampleReflection("r2", "user_aaaa", now.Add(-time.Hour))); err != nil {
		t.Fatalf("SaveReflection failed: %v", err)
	}
	if err := s.SaveReflection(ctx, sampleReflection("r3", "user_bbbb", now)); err != nil {
		t.Fatalf("SaveReflection failed: %v", err)
	}

	count, err := s.CountReflectionsSince(ctx, "user_aaaa", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountReflectionsSince failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 reflection in window, got %d", count)
	}

	count, err = s.CountReflectionsSince(ctx, "user_cccc", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountReflectionsSince failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 reflections for unknown user, got %d", count)
	}
}

func TestInMemoryStoreSnapshot(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.SaveReflection(ctx, sampleReflection("r1", "user_aaaa", time.Now().UTC())); err != nil {
		t.Fatalf("SaveReflection failed: %v", err)
	}

	got := s.Reflections()
	if len(got) != 1 {
		t.Fatalf("expected 1 stored reflection, got %d", len(got))
	}
	if got[0].ID != "r1" {
		t.Errorf("expected ID r1, got %s", got[0].ID)
	}
}

func TestNewSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected error when DSN is not set")
	}
}

func TestSQLiteStoreSaveAndCount(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "reflections.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.SaveReflection(ctx, sampleReflection("r1", "user_aaaa", now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("SaveReflection failed: %v", err)
	}
	if err := s.SaveReflection(ctx, sampleReflection("r2", "user_aaaa", now)); err != nil {
		t.Fatalf("SaveReflection failed: %v", err)
	}

	count, err := s.CountReflectionsSince(ctx, "user_aaaa", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountReflectionsSince failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 reflection in window, got %d", count)
	}
}

func TestSQLiteStoreDuplicateIDRejected(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "reflections.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	r := sampleReflection("r1", "user_aaaa", time.Now().UTC())
	if err := s.SaveReflection(ctx, r); err != nil {
		t.Fatalf("first SaveReflection failed: %v", err)
	}
	if err := s.SaveReflection(ctx, r); err == nil {
		t.Error("expected duplicate primary key to be rejected")
	}
}

func TestMarshalReflectionFieldsNilSlices(t *testing.T) {
	r := models.Reflection{ID: "r1", UserHash: "user_aaaa"}
	factors, categories, roots, err := marshalReflectionFields(r)
	if err != nil {
		t.Fatalf("marshalReflectionFields failed: %v", err)
	}
	for name, got := range map[string]string{"factors": factors, "categories": categories, "roots": roots} {
		if got != "[]" {
			t.Errorf("expected %s to marshal to [], got %q", name, got)
		}
	}
}
