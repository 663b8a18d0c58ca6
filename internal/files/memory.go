package files

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	folders map[string]Folder // by name
	files   map[string]memFile
	now     func() time.Time
}

type memFile struct {
	File
	folderID string
	data     []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		folders: make(map[string]Folder),
		files:   make(map[string]memFile),
		now:     time.Now,
	}
}

func (m *MemoryStore) FindOrCreateFolder(_ context.Context, patient string) (Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.folders[patient]; ok {
		return f, nil
	}
	f := Folder{ID: uuid.NewString(), Name: patient}
	m.folders[patient] = f
	return f, nil
}

func (m *MemoryStore) ListFiles(_ context.Context, folderID string) ([]File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasFolder(folderID) {
		return nil, fmt.Errorf("files: list %s: %w", folderID, ErrFolderNotFound)
	}
	var out []File
	for _, f := range m.files {
		if f.folderID == folderID {
			out = append(out, f.File)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) Upload(_ context.Context, folderID, name, contentType string, body io.Reader) (File, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return File{}, fmt.Errorf("files: read upload: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasFolder(folderID) {
		return File{}, fmt.Errorf("files: upload %s: %w", name, ErrFolderNotFound)
	}
	f := File{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		ModifiedAt:  m.now().UTC(),
	}
	m.files[f.ID] = memFile{File: f, folderID: folderID, data: data}
	return f, nil
}

func (m *MemoryStore) Download(_ context.Context, fileID string) (io.ReadCloser, File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, File{}, fmt.Errorf("files: download %s: %w", fileID, ErrFileNotFound)
	}
	return io.NopCloser(bytes.NewReader(f.data)), f.File, nil
}

// hasFolder must be called with mu held.
func (m *MemoryStore) hasFolder(id string) bool {
	for _, f := range m.folders {
		if f.ID == id {
			return true
		}
	}
	return false
}
