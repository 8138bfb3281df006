// Package filestore keeps uploaded files on the local disk or in an S3 bucket.
package filestore

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
)

var errBadRef = errors.New("invalid file reference")

// objectKey returns a collision free key for the upload under prefix.
func objectKey(prefix string, up core.Upload) string {
	name := uuid.New().String()
	if ext := up.Ext(); ext != "" {
		name += "." + ext
	}
	return path.Join(prefix, name)
}

type localStore struct {
	root string
}

var _ core.FileStore = (*localStore)(nil)

func NewLocalStore(root string) (*localStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &localStore{root: root}, nil
}

func (s *localStore) path(ref string) (string, error) {
	clean := path.Clean("/" + ref)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") || clean != ref {
		return "", errBadRef
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *localStore) Save(_ context.Context, prefix string, up core.Upload) (string, error) {
	ref := objectKey(prefix, up)
	fp, err := s.path(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload dir")
	}

	f, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err := io.Copy(f, up.Content); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return "", errors.Wrap(err, "writing file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(fp)
		return "", errors.Wrap(err, "closing file")
	}
	return ref, nil
}

func (s *localStore) Delete(_ context.Context, ref string) error {
	fp, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}
