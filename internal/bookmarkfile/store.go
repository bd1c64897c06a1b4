package bookmarkfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stnma7e/bookmarktabgroups/internal/engine"
)

var (
	ErrFolderNotFound = errors.New("folder not found")
	ErrEntryNotFound  = errors.New("entry not found")
)

// document is the on-disk layout: folders in creation order, entries in
// ordinal order, plus the id counter so identifiers stay stable across
// restarts.
type document struct {
	NextID  int          `json:"nextId"`
	Folders []folderNode `json:"folders"`
}

type folderNode struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Entries []entryNode `json:"entries"`
}

type entryNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Store is a file-backed bookmark store. Every mutation rewrites the whole
// document atomically; slice position is the ordinal order the engine sees.
type Store struct {
	path string

	mu          sync.Mutex
	doc         document
	lastPayload []byte
}

// Open loads the document at path, or starts an empty one when the file
// does not exist yet.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("bookmark file path is empty")
	}
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read bookmark file: %w", err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parse bookmark file %s: %w", path, err)
	}
	s.lastPayload = data
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ListFolders(ctx context.Context) ([]engine.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	folders := make([]engine.Folder, 0, len(s.doc.Folders))
	for _, f := range s.doc.Folders {
		folders = append(folders, engine.Folder{ID: f.ID, Title: f.Title})
	}
	return folders, nil
}

func (s *Store) FolderChildren(ctx context.Context, folderID string) ([]engine.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, _, ok := s.folderLocked(folderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
	}
	entries := make([]engine.Bookmark, 0, len(f.Entries))
	for i, e := range f.Entries {
		entries = append(entries, engine.Bookmark{
			ID:       e.ID,
			FolderID: f.ID,
			URL:      e.URL,
			Title:    e.Title,
			Index:    i,
		})
	}
	return entries, nil
}

func (s *Store) CreateFolder(ctx context.Context, title string) (engine.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.NextID++
	folder := folderNode{ID: fmt.Sprintf("f%d", s.doc.NextID), Title: title}
	s.doc.Folders = append(s.doc.Folders, folder)
	if err := s.saveLocked(); err != nil {
		return engine.Folder{}, err
	}
	return engine.Folder{ID: folder.ID, Title: folder.Title}, nil
}

func (s *Store) CreateEntry(ctx context.Context, folderID, title, url string, index int) (engine.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, fi, ok := s.folderLocked(folderID)
	if !ok {
		return engine.Bookmark{}, fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
	}
	s.doc.NextID++
	entry := entryNode{ID: fmt.Sprintf("b%d", s.doc.NextID), Title: title, URL: url}
	if index < 0 || index > len(f.Entries) {
		index = len(f.Entries)
	}
	entries := append([]entryNode{}, f.Entries[:index]...)
	entries = append(entries, entry)
	entries = append(entries, f.Entries[index:]...)
	s.doc.Folders[fi].Entries = entries
	if err := s.saveLocked(); err != nil {
		return engine.Bookmark{}, err
	}
	return engine.Bookmark{ID: entry.ID, FolderID: folderID, URL: url, Title: title, Index: index}, nil
}

func (s *Store) UpdateEntry(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fi, ei, ok := s.entryLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	s.doc.Folders[fi].Entries[ei].Title = title
	return s.saveLocked()
}

func (s *Store) MoveEntry(ctx context.Context, id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fi, ei, ok := s.entryLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	entries := s.doc.Folders[fi].Entries
	entry := entries[ei]
	entries = append(entries[:ei], entries[ei+1:]...)
	if index < 0 || index > len(entries) {
		index = len(entries)
	}
	entries = append(entries[:index], append([]entryNode{entry}, entries[index:]...)...)
	s.doc.Folders[fi].Entries = entries
	return s.saveLocked()
}

func (s *Store) RemoveEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fi, ei, ok := s.entryLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	entries := s.doc.Folders[fi].Entries
	s.doc.Folders[fi].Entries = append(entries[:ei], entries[ei+1:]...)
	return s.saveLocked()
}

// snapshot returns a deep copy of the current document for diffing.
func (s *Store) snapshot() document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.clone()
}

// reloadIfChanged re-reads the backing file. It reports false when the file
// matches the last payload this store wrote or loaded, which is how the
// watcher tells external edits apart from the store's own writes.
func (s *Store) reloadIfChanged() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reload bookmark file: %w", err)
	}
	if bytes.Equal(data, s.lastPayload) {
		return false, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("parse bookmark file %s: %w", s.path, err)
	}
	if doc.NextID < s.doc.NextID {
		doc.NextID = s.doc.NextID
	}
	s.doc = doc
	s.lastPayload = data
	return true, nil
}

func (s *Store) folderLocked(folderID string) (folderNode, int, bool) {
	for i, f := range s.doc.Folders {
		if f.ID == folderID {
			return f, i, true
		}
	}
	return folderNode{}, 0, false
}

func (s *Store) entryLocked(id string) (folderIdx, entryIdx int, ok bool) {
	for fi, f := range s.doc.Folders {
		for ei, e := range f.Entries {
			if e.ID == id {
				return fi, ei, true
			}
		}
	}
	return 0, 0, false
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write bookmark file: %w", err)
	}
	s.lastPayload = data
	return nil
}

func (d document) clone() document {
	out := document{NextID: d.NextID, Folders: make([]folderNode, len(d.Folders))}
	for i, f := range d.Folders {
		out.Folders[i] = folderNode{
			ID:      f.ID,
			Title:   f.Title,
			Entries: append([]entryNode(nil), f.Entries...),
		}
	}
	return out
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
