package bookmarkfile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "bookmarks.json"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	folders, err := store.ListFolders(context.Background())
	if err != nil {
		t.Fatalf("list folders failed: %v", err)
	}
	if len(folders) != 0 {
		t.Fatalf("expected empty store, got %v", folders)
	}
}

func TestCreateFolderAndEntriesKeepOrdinalOrder(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "bookmarks.json"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	folder, err := store.CreateFolder(context.Background(), "Work")
	if err != nil {
		t.Fatalf("create folder failed: %v", err)
	}
	for i, url := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		if _, err := store.CreateEntry(context.Background(), folder.ID, url, url, i); err != nil {
			t.Fatalf("create entry %d failed: %v", i, err)
		}
	}
	entries, err := store.FolderChildren(context.Background(), folder.ID)
	if err != nil {
		t.Fatalf("folder children failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Index != i {
			t.Fatalf("expected dense indices, entry %d has %d", i, entry.Index)
		}
		if entry.FolderID != folder.ID {
			t.Fatalf("expected folder id %s, got %s", folder.ID, entry.FolderID)
		}
	}
	if entries[0].URL != "https://a.example" || entries[2].URL != "https://c.example" {
		t.Fatalf("unexpected order: %v", entries)
	}
}

func TestCreateEntryInsertsAtIndex(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "bookmarks.json"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	folder, _ := store.CreateFolder(context.Background(), "Work")
	store.CreateEntry(context.Background(), folder.ID, "A", "https://a.example", 0)
	store.CreateEntry(context.Background(), folder.ID, "C", "https://c.example", 1)
	if _, err := store.CreateEntry(context.Background(), folder.ID, "B", "https://b.example", 1); err != nil {
		t.Fatalf("insert at index failed: %v", err)
	}
	entries, _ := store.FolderChildren(context.Background(), folder.ID)
	if entries[1].URL != "https://b.example" {
		t.Fatalf("expected insert at 1, got %v", entries)
	}
}

func TestMoveUpdateRemoveEntry(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "bookmarks.json"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	folder, _ := store.CreateFolder(context.Background(), "Work")
	a, _ := store.CreateEntry(context.Background(), folder.ID, "A", "https://a.example", 0)
	b, _ := store.CreateEntry(context.Background(), folder.ID, "B", "https://b.example", 1)
	store.CreateEntry(context.Background(), folder.ID, "C", "https://c.example", 2)

	if err := store.MoveEntry(context.Background(), a.ID, 2); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	entries, _ := store.FolderChildren(context.Background(), folder.ID)
	if entries[2].ID != a.ID {
		t.Fatalf("expected A at index 2, got %v", entries)
	}

	if err := store.UpdateEntry(context.Background(), b.ID, "B renamed"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	entries, _ = store.FolderChildren(context.Background(), folder.ID)
	if entries[0].Title != "B renamed" {
		t.Fatalf("expected retitled entry, got %v", entries)
	}

	if err := store.RemoveEntry(context.Background(), b.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	entries, _ = store.FolderChildren(context.Background(), folder.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after remove, got %v", entries)
	}

	if err := store.RemoveEntry(context.Background(), b.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestIdsStayStableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.json")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	folder, _ := store.CreateFolder(context.Background(), "Work")
	entry, _ := store.CreateEntry(context.Background(), folder.ID, "A", "https://a.example", 0)

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	entries, err := reopened.FolderChildren(context.Background(), folder.ID)
	if err != nil {
		t.Fatalf("folder children after reopen failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != entry.ID {
		t.Fatalf("expected stable entry id %s, got %v", entry.ID, entries)
	}

	// New ids keep counting from the persisted counter.
	second, err := reopened.CreateEntry(context.Background(), folder.ID, "B", "https://b.example", 1)
	if err != nil {
		t.Fatalf("create after reopen failed: %v", err)
	}
	if second.ID == entry.ID {
		t.Fatalf("expected fresh id, got duplicate %s", second.ID)
	}
}

func TestUnknownFolderErrors(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "bookmarks.json"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := store.FolderChildren(context.Background(), "f999"); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("expected ErrFolderNotFound, got %v", err)
	}
	if _, err := store.CreateEntry(context.Background(), "f999", "A", "https://a.example", 0); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("expected ErrFolderNotFound, got %v", err)
	}
}
