package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/imuhira/backend/internal/database"
	"github.com/imuhira/backend/internal/models"
)

// openTestDB connects to TEST_DATABASE_URL and migrates it. Tests using it
// are skipped when the variable is unset.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.NewPostgresDB(dsn)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.RunMigrations(db.DB); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func uniqueSlug(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
}

func countArguments(t *testing.T, db *database.DB, debateID int64) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM debate_arguments WHERE debate_id = $1`, debateID).Scan(&n); err != nil {
		t.Fatalf("Failed to count arguments: %v", err)
	}
	return n
}

func TestDebateRepository_CreateDropsBlankArguments(t *testing.T) {
	db := openTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.DebateRequest{
		Title:          "Round trip",
		Slug:           uniqueSlug(t),
		Topic:          "Does it round trip?",
		Verdict:        "Yes",
		IdubuArguments: []models.ArgumentInput{{Argument: "A"}, {Argument: ""}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { repo.Delete(ctx, created.ID) })

	if len(created.Arguments.Idubu) != 1 {
		t.Fatalf("Expected 1 idubu argument, got %d", len(created.Arguments.Idubu))
	}
	if got := created.Arguments.Idubu[0]; got.Argument != "A" || got.OrderIndex != 0 {
		t.Errorf("unexpected argument %+v", got)
	}
	if len(created.Arguments.Akagara) != 0 {
		t.Errorf("Expected no akagara arguments, got %d", len(created.Arguments.Akagara))
	}
	if created.AuthorName != models.DefaultAuthorName {
		t.Errorf("AuthorName = %q", created.AuthorName)
	}
	if created.Status != models.StatusDraft || created.PublishedAt != nil {
		t.Errorf("Expected unpublished draft, got status=%s publishedAt=%v", created.Status, created.PublishedAt)
	}
}

func TestDebateRepository_PublishStamp(t *testing.T) {
	db := openTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	req := &models.DebateRequest{
		Title:   "Published",
		Slug:    uniqueSlug(t),
		Topic:   "Q",
		Verdict: "V",
		Status:  models.StatusPublished,
	}
	created, err := repo.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { repo.Delete(ctx, created.ID) })

	if created.PublishedAt == nil || created.PublishedAt.Before(before) {
		t.Fatalf("Expected publishedAt at or after %v, got %v", before, created.PublishedAt)
	}
	first := *created.PublishedAt

	updateReq := *req
	updateReq.Title = "Published again"
	updated, _, err := repo.Update(ctx, created.ID, &updateReq)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.PublishedAt == nil || !updated.PublishedAt.Equal(first) {
		t.Errorf("Expected publishedAt to stay %v, got %v", first, updated.PublishedAt)
	}

	updateReq.Status = models.StatusDraft
	drafted, _, err := repo.Update(ctx, created.ID, &updateReq)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if drafted.PublishedAt != nil {
		t.Errorf("Expected publishedAt cleared on draft, got %v", drafted.PublishedAt)
	}
	if _, err := repo.GetPublishedBySlug(ctx, req.Slug); !errors.Is(err, ErrDebateNotFound) {
		t.Errorf("Expected draft hidden from public read, got %v", err)
	}
}

func TestDebateRepository_DuplicateSlug(t *testing.T) {
	db := openTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	slug := uniqueSlug(t)
	first, err := repo.Create(ctx, &models.DebateRequest{Title: "First", Slug: slug, Topic: "Q", Verdict: "V"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { repo.Delete(ctx, first.ID) })

	_, err = repo.Create(ctx, &models.DebateRequest{Title: "Second", Slug: slug, Topic: "Q2", Verdict: "V2"})
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("Expected ErrSlugTaken, got %v", err)
	}

	got, err := repo.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "First" || got.Topic != "Q" {
		t.Errorf("First debate was modified: %+v", got.Debate)
	}
}

func TestDebateRepository_UpdateReplacesArguments(t *testing.T) {
	db := openTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	req := &models.DebateRequest{
		Title:            "Replace",
		Slug:             uniqueSlug(t),
		Topic:            "Q",
		Verdict:          "V",
		IdubuArguments:   []models.ArgumentInput{{Argument: "i0"}, {Argument: "i1"}},
		AkagaraArguments: []models.ArgumentInput{{Argument: "k0"}},
	}
	created, err := repo.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { repo.Delete(ctx, created.ID) })

	req.IdubuArguments = []models.ArgumentInput{{Argument: "  "}, {Argument: "new"}}
	req.AkagaraArguments = nil
	updated, prevSlug, err := repo.Update(ctx, created.ID, req)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if prevSlug != created.Slug {
		t.Errorf("previous slug = %q, want %q", prevSlug, created.Slug)
	}
	if len(updated.Arguments.Idubu) != 1 || updated.Arguments.Idubu[0].Argument != "new" || updated.Arguments.Idubu[0].OrderIndex != 0 {
		t.Errorf("unexpected idubu arguments: %+v", updated.Arguments.Idubu)
	}
	if len(updated.Arguments.Akagara) != 0 {
		t.Errorf("Expected akagara cleared, got %+v", updated.Arguments.Akagara)
	}
	if n := countArguments(t, db, created.ID); n != 1 {
		t.Errorf("Expected 1 stored argument, got %d", n)
	}
}

func TestDebateRepository_DeleteCascades(t *testing.T) {
	db := openTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.DebateRequest{
		Title:            "Cascade",
		Slug:             uniqueSlug(t),
		Topic:            "Q",
		Verdict:          "V",
		IdubuArguments:   []models.ArgumentInput{{Argument: "a"}, {Argument: "b"}},
		AkagaraArguments: []models.ArgumentInput{{Argument: "c"}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if n := countArguments(t, db, created.ID); n != 3 {
		t.Fatalf("Expected 3 arguments before delete, got %d", n)
	}

	if _, err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n := countArguments(t, db, created.ID); n != 0 {
		t.Errorf("Expected 0 arguments after delete, got %d", n)
	}
	if _, err := repo.Delete(ctx, created.ID); !errors.Is(err, ErrDebateNotFound) {
		t.Errorf("Expected ErrDebateNotFound on second delete, got %v", err)
	}
}

func TestDebateRepository_UpdateMissing(t *testing.T) {
	db := openTestDB(t)
	repo := NewDebateRepository(db)

	_, _, err := repo.Update(context.Background(), -1, &models.DebateRequest{Title: "T", Slug: uniqueSlug(t), Topic: "Q", Verdict: "V"})
	if !errors.Is(err, ErrDebateNotFound) {
		t.Errorf("Expected ErrDebateNotFound, got %v", err)
	}
}

func TestDebateRepository_ListNewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewDebateRepository(db)
	ctx := context.Background()

	older, err := repo.Create(ctx, &models.DebateRequest{Title: "Older", Slug: uniqueSlug(t) + "-a", Topic: "Q", Verdict: "V",
		AkagaraArguments: []models.ArgumentInput{{Argument: "k"}}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { repo.Delete(ctx, older.ID) })
	newer, err := repo.Create(ctx, &models.DebateRequest{Title: "Newer", Slug: uniqueSlug(t) + "-b", Topic: "Q", Verdict: "V"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { repo.Delete(ctx, newer.ID) })

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	olderIdx, newerIdx := -1, -1
	for i, d := range all {
		switch d.ID {
		case older.ID:
			olderIdx = i
			if len(d.Arguments.Akagara) != 1 {
				t.Errorf("Expected older debate to carry its argument, got %+v", d.Arguments)
			}
		case newer.ID:
			newerIdx = i
		}
	}
	if olderIdx < 0 || newerIdx < 0 {
		t.Fatalf("List() missing created debates")
	}
	if newerIdx > olderIdx {
		t.Errorf("Expected newer debate first, got newer=%d older=%d", newerIdx, olderIdx)
	}
}
