package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/kbase-ai/kbq-go/internal/rag"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_SQLiteStore_CreateGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	in := rag.Document{
		Title:    "Business Hours",
		Content:  "We are open Monday through Friday, 9 AM to 6 PM EST.",
		Metadata: map[string]string{"category": "support"},
	}
	created, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create did not assign an id")
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != in.Title || got.Content != in.Content {
		t.Errorf("got = %+v", got)
	}
	if got.Metadata["category"] != "support" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func Test_SQLiteStore_CreateKeepsProvidedID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	created, err := s.Create(context.Background(), rag.Document{ID: "doc-7", Content: "body"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "doc-7" {
		t.Errorf("id = %q, want doc-7", created.ID)
	}
}

func Test_SQLiteStore_CreateRejectsEmptyContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Create(context.Background(), rag.Document{Title: "empty"})
	if !errors.Is(err, rag.ErrInvalidInput) {
		t.Fatalf("err = %v, want rag.ErrInvalidInput", err)
	}
}

func Test_SQLiteStore_Update(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, rag.Document{Title: "old", Content: "old body"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	patch := rag.Document{Title: "new", Metadata: map[string]string{"rev": "2"}}
	updated, err := s.Update(ctx, created.ID, patch)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "new" {
		t.Errorf("title = %q, want new", updated.Title)
	}
	if updated.Content != "old body" {
		t.Errorf("content = %q, empty patch field should keep old value", updated.Content)
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "new" || got.Content != "old body" {
		t.Errorf("got = %+v", got)
	}
	if got.Metadata["rev"] != "2" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func Test_SQLiteStore_UpdateMissing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Update(context.Background(), "ghost", rag.Document{Content: "body"})
	if !errors.Is(err, rag.ErrNotFound) {
		t.Fatalf("err = %v, want rag.ErrNotFound", err)
	}
}

func Test_SQLiteStore_Delete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, rag.Document{Content: "body"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, created.ID); !errors.Is(err, rag.ErrNotFound) {
		t.Fatalf("Get after delete: err = %v, want rag.ErrNotFound", err)
	}
	if err := s.Delete(ctx, created.ID); !errors.Is(err, rag.ErrNotFound) {
		t.Fatalf("second Delete: err = %v, want rag.ErrNotFound", err)
	}
}

func Test_SQLiteStore_List(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		if _, err := s.Create(ctx, rag.Document{Title: title, Content: title + " body"}); err != nil {
			t.Fatalf("Create(%q): %v", title, err)
		}
	}

	docs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len = %d, want 3", len(docs))
	}
}

func Test_SQLiteStore_SearchMatchesTitleAndContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seed := []rag.Document{
		{Title: "Business Hours", Content: "Open weekdays 9 to 6."},
		{Title: "Returns Policy", Content: "Items may be returned within 30 days."},
		{Title: "Shipping", Content: "Orders ship within two business days."},
	}
	for _, d := range seed {
		if _, err := s.Create(ctx, d); err != nil {
			t.Fatalf("Create(%q): %v", d.Title, err)
		}
	}

	got, err := s.Search(ctx, "business")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (title match + content match)", len(got))
	}

	none, err := s.Search(ctx, "warranty")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("len = %d, want 0", len(none))
	}
}
