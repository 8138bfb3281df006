package core

import (
	"context"
	"io"
	"path/filepath"
	"strings"
)

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Ext returns the lower-cased file extension of the upload, without the leading dot.
func (u Upload) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(u.Filename)), ".")
}

// FileStore persists uploaded files and returns a reference used to fetch or delete them later.
type FileStore interface {
	Save(ctx context.Context, prefix string, up Upload) (ref string, err error)
	Delete(ctx context.Context, ref string) error
}
