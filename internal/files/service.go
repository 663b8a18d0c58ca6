package files

import (
	"context"
	"io"
	"strings"

	"github.com/wolfman30/clinic-agenda/internal/roster"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

// PatientLookup resolves a patient by exact name.
type PatientLookup interface {
	Get(ctx context.Context, name string) (roster.Patient, error)
}

// Service attaches documents to known patients.
type Service struct {
	store    Store
	patients PatientLookup
	logger   *logging.Logger
}

func NewService(store Store, patients PatientLookup, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, patients: patients, logger: logger}
}

func (s *Service) folder(ctx context.Context, patient string) (Folder, error) {
	p, err := s.patients.Get(ctx, patient)
	if err != nil {
		return Folder{}, err
	}
	return s.store.FindOrCreateFolder(ctx, p.FullName)
}

// List returns the documents of a patient, inactive ones included.
func (s *Service) List(ctx context.Context, patient string) ([]File, error) {
	folder, err := s.folder(ctx, patient)
	if err != nil {
		return nil, err
	}
	out, err := s.store.ListFiles(ctx, folder.ID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []File{}
	}
	return out, nil
}

func (s *Service) Upload(ctx context.Context, patient, name, contentType string, body io.Reader) (File, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return File{}, ErrNameRequired
	}
	folder, err := s.folder(ctx, patient)
	if err != nil {
		return File{}, err
	}
	f, err := s.store.Upload(ctx, folder.ID, name, contentType, body)
	if err != nil {
		return File{}, err
	}
	s.logger.Info("patient file uploaded", "patient", folder.Name, "file_id", f.ID, "size", f.Size)
	return f, nil
}

func (s *Service) Download(ctx context.Context, fileID string) (io.ReadCloser, File, error) {
	return s.store.Download(ctx, fileID)
}
