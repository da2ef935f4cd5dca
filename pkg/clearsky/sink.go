package clearsky

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// FileSink writes annotated frames into a directory as
// <tag><basename of the source frame>.
type FileSink struct {
	dir string
	tag string
}

// NewFileSink returns a sink writing into dir with the given filename prefix.
func NewFileSink(dir, tag string) *FileSink {
	return &FileSink{dir: dir, tag: tag}
}

// Path returns the file an annotated copy of name is written to. Sources
// imaging cannot encode (FITS) are written as JPEG.
func (s *FileSink) Path(name string) string {
	base := filepath.Base(name)
	if _, err := imaging.FormatFromFilename(base); err != nil {
		base = strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
	}
	return filepath.Join(s.dir, s.tag+base)
}

// WriteAnnotated implements AnnotationSink.
func (s *FileSink) WriteAnnotated(ctx context.Context, name string, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	path := s.Path(name)
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSinkWrite, path, err)
	}
	return nil
}
