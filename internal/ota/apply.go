package ota

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrImageInvalid reports an image that failed validation before apply.
var ErrImageInvalid = errors.New("ota: firmware image invalid")

// Applier is the atomic image-apply capability: either the new image becomes
// the one to boot next, or nothing changes. The lifecycle relies on this
// atomicity rather than re-implementing it.
type Applier interface {
	Apply(r io.Reader) error
}

// minImageSize rejects truncated or empty downloads before they replace a
// working image.
const minImageSize = 1024

// FileApplier stages the image next to its destination and renames it into
// place, so a crash mid-download never leaves a partial image at the boot
// path.
type FileApplier struct {
	// Path is the image location the boot loader reads.
	Path string
}

func (a *FileApplier) Apply(r io.Reader) error {
	dir := filepath.Dir(a.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".staged-*.bin")
	if err != nil {
		return fmt.Errorf("stage image: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("download image: %w", err)
	}
	if n < minImageSize {
		tmp.Close()
		return fmt.Errorf("%w: %d bytes", ErrImageInvalid, n)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync staged image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staged image: %w", err)
	}

	if err := os.Rename(tmpName, a.Path); err != nil {
		return fmt.Errorf("apply image: %w", err)
	}
	return nil
}
