package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/teris-io/shortid"
)

var ErrUploadFailed = errors.New("object store upload failed")

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Blob struct {
	PublicId string `json:"public_id"`
	Url      string `json:"url"`
}

// ObjectStore uploads and deletes binary objects such as attachments and
// avatars. Upload is all-or-nothing: either every file is stored or none is.
type ObjectStore interface {
	Upload(ctx context.Context, files []File) ([]Blob, error)
	Delete(ctx context.Context, ids []string) error
}

// DiskStore keeps blobs in a directory on the local filesystem and exposes
// them under baseURL.
type DiskStore struct {
	log     *log.Logger
	root    string
	baseURL string
	sid     *shortid.Shortid
}

func NewDiskStore(logger *log.Logger, root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	sid, err := shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		return nil, fmt.Errorf("shortid: %w", err)
	}

	return &DiskStore{
		log:     logger,
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		sid:     sid,
	}, nil
}

func (s *DiskStore) Upload(ctx context.Context, files []File) ([]Blob, error) {
	blobs := make([]Blob, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			s.rollback(blobs)
			return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}

		blob, err := s.put(f)
		if err != nil {
			s.rollback(blobs)
			return nil, fmt.Errorf("%w: %s: %w", ErrUploadFailed, f.Name, err)
		}
		blobs = append(blobs, blob)
	}

	return blobs, nil
}

func (s *DiskStore) put(f File) (Blob, error) {
	id, err := s.sid.Generate()
	if err != nil {
		return Blob{}, err
	}
	id += strings.ToLower(filepath.Ext(filepath.Base(f.Name)))

	if err := os.WriteFile(filepath.Join(s.root, id), f.Data, 0o644); err != nil {
		return Blob{}, err
	}

	return Blob{
		PublicId: id,
		Url:      s.baseURL + "/" + url.PathEscape(id),
	}, nil
}

func (s *DiskStore) rollback(blobs []Blob) {
	ids := make([]string, len(blobs))
	for i, b := range blobs {
		ids[i] = b.PublicId
	}

	if err := s.Delete(context.Background(), ids); err != nil {
		s.log.Println("rollback uploaded blobs:", err)
	}
}

// Delete removes every blob in ids, continuing past failures. Blobs that do
// not exist are ignored.
func (s *DiskStore) Delete(_ context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		if id == "" || id != path.Base(id) {
			errs = append(errs, fmt.Errorf("invalid blob id %q", id))
			continue
		}

		err := os.Remove(filepath.Join(s.root, id))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
