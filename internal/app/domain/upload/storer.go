package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

// Storer keeps upload bodies addressed by their fetch code.
type Storer interface {
	// Save streams r into a new object and returns its fetch code.
	Save(ctx context.Context, r io.Reader) (string, error)
	// Open returns the object body and its sniffed content type.
	Open(ctx context.Context, fetchCode string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, fetchCode string) error
}

// LocalStorer writes uploads as flat files under Dir.
type LocalStorer struct {
	Dir string
}

func NewLocalStorer(dir string) (*LocalStorer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &LocalStorer{Dir: dir}, nil
}

func (s *LocalStorer) Save(ctx context.Context, r io.Reader) (string, error) {
	code := uuid.NewString()
	f, err := os.OpenFile(s.path(code), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload %s: %w", code, err)
	}
	_, err = io.Copy(f, contextReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(s.path(code))
		return "", fmt.Errorf("failed to write upload %s: %w", code, err)
	}
	return code, nil
}

func (s *LocalStorer) Open(_ context.Context, fetchCode string) (io.ReadCloser, string, error) {
	if err := uuid.Validate(fetchCode); err != nil {
		return nil, "", fmt.Errorf("malformed fetch code %q: %w", fetchCode, models.ErrValidation)
	}
	f, err := os.Open(s.path(fetchCode))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("upload %s: %w", fetchCode, models.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload %s: %w", fetchCode, err)
	}
	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("failed to sniff upload %s: %w", fetchCode, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("failed to rewind upload %s: %w", fetchCode, err)
	}
	return f, mime.String(), nil
}

func (s *LocalStorer) Remove(_ context.Context, fetchCode string) error {
	err := os.Remove(s.path(fetchCode))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove upload %s: %w", fetchCode, err)
	}
	return nil
}

func (s *LocalStorer) path(fetchCode string) string {
	return filepath.Join(s.Dir, filepath.Base(fetchCode))
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
