package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalService stores images on the local filesystem. References are
// "<publicPrefix>/<name>" and are served statically by the HTTP layer.
type LocalService struct {
	dir          string
	publicPrefix string
	now          func() time.Time
}

func NewLocalService(dir, publicPrefix string) (*LocalService, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalService{
		dir:          filepath.Clean(dir),
		publicPrefix: strings.Trim(publicPrefix, "/"),
		now:          time.Now,
	}, nil
}

func (s *LocalService) Save(ctx context.Context, filename string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := ObjectName(filename, s.now())
	dst := filepath.Join(s.dir, name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		// same name uploaded within the same millisecond
		name = withSuffix(name, uuid.NewString()[:8])
		dst = filepath.Join(s.dir, name)
		f, err = os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	return path.Join(s.publicPrefix, name), nil
}

// Delete removes a file previously returned by Save. References outside the
// upload dir are ignored.
func (s *LocalService) Delete(_ context.Context, ref string) error {
	name := strings.TrimPrefix(strings.TrimPrefix(ref, s.publicPrefix), "/")
	if name == "" || name != filepath.Base(name) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

var _ Service = (*LocalService)(nil)
