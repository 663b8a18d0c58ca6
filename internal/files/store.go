// Package files keeps documents attached to patients, one folder per
// patient name.
package files

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrFolderNotFound = errors.New("files: folder not found")
	ErrFileNotFound   = errors.New("files: file not found")
	ErrNameRequired   = errors.New("files: file name required")
)

// Folder holds one patient's documents.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// File describes a stored document.
type File struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modified_at,omitempty"`
}

// Store is a document backend.
type Store interface {
	// FindOrCreateFolder returns the folder named exactly patient, creating it on first use.
	FindOrCreateFolder(ctx context.Context, patient string) (Folder, error)
	ListFiles(ctx context.Context, folderID string) ([]File, error)
	Upload(ctx context.Context, folderID, name, contentType string, body io.Reader) (File, error)
	// Download returns the content of a file. The caller closes it.
	Download(ctx context.Context, fileID string) (io.ReadCloser, File, error)
}
