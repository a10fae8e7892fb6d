package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Service persists uploaded listing images and returns the reference stored
// on the listing.
type Service interface {
	Save(ctx context.Context, filename string, body io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

var whitespace = regexp.MustCompile(`\s`)

// ObjectName builds the stored name for an uploaded file: the client's base
// name with whitespace replaced, a millisecond timestamp, then the extension.
func ObjectName(filename string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		base = ""
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = whitespace.ReplaceAllString(stem, "_")
	if stem == "" {
		stem = "image"
	}
	return fmt.Sprintf("%s%d%s", stem, now.UnixMilli(), strings.ToLower(ext))
}

func withSuffix(name, suffix string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + suffix + ext
}
