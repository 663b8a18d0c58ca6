package files

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type driveRequest struct {
	method string
	path   string
	query  url.Values
	body   string
}

// fakeDrive serves a root folder holding a single patient folder "Ana"
// with two files listed over two pages. File "stray" sits in a folder
// outside the root.
type fakeDrive struct {
	mu       sync.Mutex
	requests []driveRequest
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	q := r.URL.Query()
	f.mu.Lock()
	f.requests = append(f.requests, driveRequest{method: r.Method, path: r.URL.Path, query: q, body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && q.Get("uploadType") != "":
		_, _ = io.WriteString(w, `{"id":"f9","name":"nuevo.pdf","mimeType":"application/pdf","size":"3"}`)
	case r.Method == http.MethodPost:
		var file drive.File
		_ = json.Unmarshal(body, &file)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "folder-new", "name": file.Name})
	case strings.HasSuffix(r.URL.Path, "/files/missing"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"File not found: missing."}}`)
	case strings.HasSuffix(r.URL.Path, "/files/f1") && q.Get("alt") == "media":
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "PDF!")
	case strings.HasSuffix(r.URL.Path, "/files/f1"):
		_, _ = io.WriteString(w, `{"id":"f1","name":"a.pdf","mimeType":"application/pdf","size":"4","modifiedTime":"2024-01-01T10:00:00Z","parents":["folder-ana"]}`)
	case strings.HasSuffix(r.URL.Path, "/files/stray") && q.Get("alt") == "media":
		_, _ = io.WriteString(w, "SECRET")
	case strings.HasSuffix(r.URL.Path, "/files/stray"):
		_, _ = io.WriteString(w, `{"id":"stray","name":"otro.pdf","mimeType":"application/pdf","parents":["folder-other"]}`)
	case strings.HasSuffix(r.URL.Path, "/files/folder-ana"):
		_, _ = io.WriteString(w, `{"id":"folder-ana","mimeType":"`+folderMimeType+`","parents":["root-1"]}`)
	case strings.HasSuffix(r.URL.Path, "/files/folder-other"):
		_, _ = io.WriteString(w, `{"id":"folder-other","mimeType":"`+folderMimeType+`","parents":["someone-else"]}`)
	case strings.Contains(q.Get("q"), folderMimeType):
		if strings.Contains(q.Get("q"), "name = 'Ana'") {
			_, _ = io.WriteString(w, `{"files":[{"id":"folder-ana","name":"Ana"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"files":[]}`)
	case q.Get("pageToken") == "p2":
		_, _ = io.WriteString(w, `{"files":[{"id":"f2","name":"b.pdf","mimeType":"image/png","size":"10"}]}`)
	default:
		_, _ = io.WriteString(w, `{"nextPageToken":"p2","files":[{"id":"f1","name":"a.pdf","mimeType":"application/pdf","size":"4","modifiedTime":"2024-01-01T10:00:00Z"}]}`)
	}
}

func (f *fakeDrive) all() []driveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]driveRequest(nil), f.requests...)
}

func newTestDriveStore(t *testing.T) (*DriveStore, *fakeDrive) {
	t.Helper()
	fake := &fakeDrive{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewDriveStore(context.Background(), "root-1",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return store, fake
}

func TestDriveStoreFindsExistingFolder(t *testing.T) {
	store, fake := newTestDriveStore(t)

	folder, err := store.FindOrCreateFolder(context.Background(), "Ana")
	require.NoError(t, err)
	assert.Equal(t, Folder{ID: "folder-ana", Name: "Ana"}, folder)

	reqs := fake.all()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].query["q"][0], "'root-1' in parents")
	assert.Contains(t, reqs[0].query["q"][0], "trashed = false")
}

func TestDriveStoreCreatesMissingFolder(t *testing.T) {
	store, fake := newTestDriveStore(t)

	folder, err := store.FindOrCreateFolder(context.Background(), "O'Brien")
	require.NoError(t, err)
	assert.Equal(t, Folder{ID: "folder-new", Name: "O'Brien"}, folder)

	reqs := fake.all()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].query["q"][0], `name = 'O\'Brien'`)
	assert.Equal(t, http.MethodPost, reqs[1].method)

	var created drive.File
	require.NoError(t, json.Unmarshal([]byte(reqs[1].body), &created))
	assert.Equal(t, folderMimeType, created.MimeType)
	assert.Equal(t, []string{"root-1"}, created.Parents)
}

func TestDriveStoreListsAllPages(t *testing.T) {
	store, _ := newTestDriveStore(t)

	list, err := store.ListFiles(context.Background(), "folder-ana")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.pdf", list[0].Name)
	assert.Equal(t, int64(4), list[0].Size)
	assert.Equal(t, 2024, list[0].ModifiedAt.Year())
	assert.Equal(t, "image/png", list[1].ContentType)
}

func TestDriveStoreUpload(t *testing.T) {
	store, fake := newTestDriveStore(t)

	f, err := store.Upload(context.Background(), "folder-ana", "nuevo.pdf", "application/pdf", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "f9", f.ID)

	reqs := fake.all()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].body, `"folder-ana"`)
	assert.Contains(t, reqs[0].body, "abc")
}

func TestDriveStoreDownload(t *testing.T) {
	store, _ := newTestDriveStore(t)

	body, meta, err := store.Download(context.Background(), "f1")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "PDF!", string(data))
	assert.Equal(t, "a.pdf", meta.Name)

	_, _, err = store.Download(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDriveStoreDownloadRejectsFilesOutsideRoot(t *testing.T) {
	store, fake := newTestDriveStore(t)

	_, _, err := store.Download(context.Background(), "stray")
	assert.ErrorIs(t, err, ErrFileNotFound)
	for _, req := range fake.all() {
		assert.NotEqual(t, "media", req.query.Get("alt"))
	}
}

func TestNewDriveStoreRequiresRoot(t *testing.T) {
	_, err := NewDriveStore(context.Background(), "")
	assert.Error(t, err)
}
