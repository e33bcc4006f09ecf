package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/util"
)

// runRepositoryTests exercises the repository contract shared by every store
func runRepositoryTests(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("create assigns increasing ids", func(t *testing.T) {
		a, err := store.Create(ctx, catalog.Item{Title: " Intro to Go ", Locator: "https://example.org/go", Language: "en"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		b, err := store.Create(ctx, catalog.Item{Title: "Concurrency", Locator: "https://example.org/cc"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if a.ID <= 0 || b.ID <= a.ID {
			t.Errorf("expected increasing positive ids, got %d then %d", a.ID, b.ID)
		}
		if a.Title != "Intro to Go" {
			t.Errorf("expected trimmed title, got %q", a.Title)
		}
		if a.Version != 1 {
			t.Errorf("expected version 1, got %d", a.Version)
		}
	})

	t.Run("create rejects blank title", func(t *testing.T) {
		_, err := store.Create(ctx, catalog.Item{Title: "  "})
		if !errors.Is(err, util.ErrInvalidItem) {
			t.Errorf("expected ErrInvalidItem, got %v", err)
		}
	})

	t.Run("find round-trips fields", func(t *testing.T) {
		created, err := store.Create(ctx, catalog.Item{
			Title:       "Testing",
			Locator:     "https://example.org/testing",
			Description: "table-driven tests",
			Language:    "fr",
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := store.Find(ctx, created.ID)
		if err != nil {
			t.Fatalf("Find failed: %v", err)
		}
		if got.Title != "Testing" || got.Locator != "https://example.org/testing" ||
			got.Description != "table-driven tests" || got.Language != "fr" {
			t.Errorf("unexpected resource %+v", got)
		}
		if !got.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
		}
	})

	t.Run("find missing is not found", func(t *testing.T) {
		_, err := store.Find(ctx, 999999)
		if !util.IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
		var repoErr *util.RepositoryError
		if !errors.As(err, &repoErr) || repoErr.Op != "find" {
			t.Errorf("expected RepositoryError for find, got %v", err)
		}
	})

	t.Run("update bumps version", func(t *testing.T) {
		created, _ := store.Create(ctx, catalog.Item{Title: "Old", Locator: "loc"})

		updated := *created
		updated.Title = "New"
		if err := store.Update(ctx, updated); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, _ := store.Find(ctx, created.ID)
		if got.Title != "New" {
			t.Errorf("expected updated title, got %q", got.Title)
		}
		if got.Version != created.Version+1 {
			t.Errorf("expected version %d, got %d", created.Version+1, got.Version)
		}
	})

	t.Run("update trims title and locator", func(t *testing.T) {
		created, _ := store.Create(ctx, catalog.Item{Title: "Plain", Locator: "loc"})

		updated := *created
		updated.Title = "  Padded title \t"
		updated.Locator = " https://example.org/padded "
		if err := store.Update(ctx, updated); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, _ := store.Find(ctx, created.ID)
		if got.Title != "Padded title" || got.Locator != "https://example.org/padded" {
			t.Errorf("expected trimmed fields, got %q and %q", got.Title, got.Locator)
		}
	})

	t.Run("update missing is not found", func(t *testing.T) {
		err := store.Update(ctx, catalog.Resource{ID: 424242, Title: "ghost"})
		if !util.IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("batch update is all or nothing", func(t *testing.T) {
		a, _ := store.Create(ctx, catalog.Item{Title: "A", Locator: "a"})
		b, _ := store.Create(ctx, catalog.Item{Title: "B", Locator: "b"})

		ra, rb := *a, *b
		ra.Title, rb.Title = "A2", "B2"
		if err := store.UpdateBatch(ctx, []catalog.Resource{ra, rb}); err != nil {
			t.Fatalf("UpdateBatch failed: %v", err)
		}
		gotA, _ := store.Find(ctx, a.ID)
		gotB, _ := store.Find(ctx, b.ID)
		if gotA.Title != "A2" || gotB.Title != "B2" {
			t.Errorf("expected both updated, got %q and %q", gotA.Title, gotB.Title)
		}

		ra.Title = "A3"
		err := store.UpdateBatch(ctx, []catalog.Resource{ra, {ID: 515151, Title: "ghost"}})
		if !util.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		gotA, _ = store.Find(ctx, a.ID)
		if gotA.Title != "A2" {
			t.Errorf("failed batch must not apply partial updates, got %q", gotA.Title)
		}
	})

	t.Run("delete removes", func(t *testing.T) {
		created, _ := store.Create(ctx, catalog.Item{Title: "Doomed", Locator: "x"})

		if err := store.Delete(ctx, created.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Find(ctx, created.ID); !util.IsNotFound(err) {
			t.Errorf("expected not found after delete, got %v", err)
		}
		if err := store.Delete(ctx, created.ID); !util.IsNotFound(err) {
			t.Errorf("expected not found on second delete, got %v", err)
		}
	})

	t.Run("list is ordered by id", func(t *testing.T) {
		list, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) == 0 {
			t.Fatal("expected resources from earlier subtests")
		}
		for i := 1; i < len(list); i++ {
			if list[i-1].ID >= list[i].ID {
				t.Errorf("list not ordered at %d: %d >= %d", i, list[i-1].ID, list[i].ID)
			}
		}
	})
}
