package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const s3Root = "patients"

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps documents under patients/<name>/ in one bucket. Folders are
// key prefixes, so creating one writes nothing.
type S3Store struct {
	client S3API
	bucket string
}

func NewS3Store(client S3API, bucket string) (*S3Store, error) {
	if client == nil || bucket == "" {
		return nil, errors.New("files: s3 client and bucket required")
	}
	return &S3Store{client: client, bucket: bucket}, nil
}

func (s *S3Store) FindOrCreateFolder(_ context.Context, patient string) (Folder, error) {
	name := strings.TrimSpace(patient)
	if name == "" {
		return Folder{}, fmt.Errorf("files: empty patient name: %w", ErrFolderNotFound)
	}
	return Folder{ID: folderPrefix(name), Name: name}, nil
}

func (s *S3Store) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	if !strings.HasPrefix(folderID, s3Root+"/") {
		return nil, fmt.Errorf("files: list %s: %w", folderID, ErrFolderNotFound)
	}
	var (
		out   []File
		token *string
	)
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(folderID),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("files: s3 list %s: %w", folderID, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == folderID {
				continue
			}
			f := File{ID: key, Name: path.Base(key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				f.ModifiedAt = *obj.LastModified
			}
			out = append(out, f)
		}
		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			return out, nil
		}
		token = page.NextContinuationToken
	}
}

func (s *S3Store) Upload(ctx context.Context, folderID, name, contentType string, body io.Reader) (File, error) {
	if !strings.HasPrefix(folderID, s3Root+"/") {
		return File{}, fmt.Errorf("files: upload %s: %w", name, ErrFolderNotFound)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := folderID + sanitize(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return File{}, fmt.Errorf("files: s3 put %s: %w", key, err)
	}
	return File{ID: key, Name: path.Base(key), ContentType: contentType}, nil
}

func (s *S3Store) Download(ctx context.Context, fileID string) (io.ReadCloser, File, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, File{}, fmt.Errorf("files: s3 get %s: %w", fileID, ErrFileNotFound)
		}
		return nil, File{}, fmt.Errorf("files: s3 get %s: %w", fileID, err)
	}
	f := File{
		ID:          fileID,
		Name:        path.Base(fileID),
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}
	if out.LastModified != nil {
		f.ModifiedAt = *out.LastModified
	}
	return out.Body, f, nil
}

func folderPrefix(patient string) string {
	return s3Root + "/" + sanitize(patient) + "/"
}

// sanitize keeps a name inside its prefix.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
