package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyTitle     = errors.New("folder title is empty")
	ErrFolderMapped   = errors.New("folder already mapped to a window")
	ErrEngineClosed   = errors.New("engine closed")
	ErrNotImplemented = errors.New("not implemented")
)

// FolderMappedError reports which window currently owns the folder, so the
// presentation layer can point the user at it.
type FolderMappedError struct {
	FolderID string
	WindowID string
}

func (e *FolderMappedError) Error() string {
	return fmt.Sprintf("folder %s already mapped to window %s", e.FolderID, e.WindowID)
}

func (e *FolderMappedError) Is(target error) bool {
	return target == ErrFolderMapped
}
