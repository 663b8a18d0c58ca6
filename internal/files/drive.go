package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

const fileFields = "id, name, mimeType, size, modifiedTime"

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// DriveStore keeps patient folders under one Google Drive folder.
type DriveStore struct {
	svc  *drive.Service
	root string
}

// NewDriveStore connects to Drive. rootFolderID is the parent of every
// patient folder.
func NewDriveStore(ctx context.Context, rootFolderID string, opts ...option.ClientOption) (*DriveStore, error) {
	if rootFolderID == "" {
		return nil, errors.New("files: drive root folder id required")
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("files: drive client: %w", err)
	}
	return &DriveStore{svc: svc, root: rootFolderID}, nil
}

func (s *DriveStore) FindOrCreateFolder(ctx context.Context, patient string) (Folder, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		queryEscaper.Replace(patient), folderMimeType, queryEscaper.Replace(s.root))
	list, err := s.svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return Folder{}, fmt.Errorf("files: find folder %s: %w", patient, err)
	}
	if len(list.Files) > 0 {
		return Folder{ID: list.Files[0].Id, Name: list.Files[0].Name}, nil
	}

	created, err := s.svc.Files.Create(&drive.File{
		Name:     patient,
		MimeType: folderMimeType,
		Parents:  []string{s.root},
	}).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return Folder{}, fmt.Errorf("files: create folder %s: %w", patient, err)
	}
	return Folder{ID: created.Id, Name: created.Name}, nil
}

func (s *DriveStore) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", queryEscaper.Replace(folderID))
	var out []File
	call := s.svc.Files.List().Q(q).Fields("nextPageToken, files(" + fileFields + ")").OrderBy("name")
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			out = append(out, fromDrive(f))
		}
		return nil
	})
	if err != nil {
		return nil, s.classify(err, ErrFolderNotFound, "list "+folderID)
	}
	return out, nil
}

func (s *DriveStore) Upload(ctx context.Context, folderID, name, contentType string, body io.Reader) (File, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	created, err := s.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: contentType,
		Parents:  []string{folderID},
	}).Media(body, googleapi.ContentType(contentType)).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return File{}, s.classify(err, ErrFolderNotFound, "upload "+name)
	}
	return fromDrive(created), nil
}

// Download streams a file stored in a patient folder. Files outside the
// root's patient folders read as missing.
func (s *DriveStore) Download(ctx context.Context, fileID string) (io.ReadCloser, File, error) {
	meta, err := s.svc.Files.Get(fileID).Fields(fileFields + ", parents").Context(ctx).Do()
	if err != nil {
		return nil, File{}, s.classify(err, ErrFileNotFound, "get "+fileID)
	}
	ok, err := s.inPatientFolder(ctx, meta.Parents)
	if err != nil {
		return nil, File{}, s.classify(err, ErrFileNotFound, "get parents of "+fileID)
	}
	if !ok {
		return nil, File{}, fmt.Errorf("files: %s outside patient folders: %w", fileID, ErrFileNotFound)
	}
	resp, err := s.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, File{}, s.classify(err, ErrFileNotFound, "download "+fileID)
	}
	return resp.Body, fromDrive(meta), nil
}

// inPatientFolder reports whether one of parents is a folder directly
// under the root.
func (s *DriveStore) inPatientFolder(ctx context.Context, parents []string) (bool, error) {
	for _, id := range parents {
		if id == s.root {
			continue
		}
		folder, err := s.svc.Files.Get(id).Fields("id, mimeType, parents").Context(ctx).Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
				continue
			}
			return false, err
		}
		if folder.MimeType != folderMimeType {
			continue
		}
		for _, p := range folder.Parents {
			if p == s.root {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *DriveStore) classify(err error, notFound error, op string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("files: %s: %w", op, notFound)
	}
	return fmt.Errorf("files: %s: %w", op, err)
}

func fromDrive(f *drive.File) File {
	out := File{ID: f.Id, Name: f.Name, ContentType: f.MimeType, Size: f.Size}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		out.ModifiedAt = t
	}
	return out
}
