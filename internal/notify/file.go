package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileDeliverer saves the HTML plan to <dir>/<date>.html instead of sending it.
type FileDeliverer struct {
	dir string
}

// NewFileDeliverer creates a FileDeliverer writing into dir.
func NewFileDeliverer(dir string) *FileDeliverer {
	return &FileDeliverer{dir: dir}
}

// Name implements Deliverer.
func (f *FileDeliverer) Name() string { return "file" }

// Validate implements Deliverer.
func (f *FileDeliverer) Validate() error {
	if f.dir == "" {
		return fmt.Errorf("outbox directory is not set")
	}
	return nil
}

// Path returns the artifact path for a date label.
func (f *FileDeliverer) Path(dateLabel string) string {
	return filepath.Join(f.dir, dateLabel+".html")
}

// Deliver implements Deliverer. A second run on the same date overwrites the file.
func (f *FileDeliverer) Deliver(_ context.Context, s Summary) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create outbox directory: %w", err)
	}
	if err := os.WriteFile(f.Path(s.DateLabel), []byte(s.HTML), 0o644); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}
