package api

import (
	"context"
	"fmt"
	"os"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
)

// FileSource serves the static sample dataset. It is the fallback tier behind the
// live poll.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource reading path on every fetch.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// FetchActive reads and decodes the dataset file.
func (f *FileSource) FetchActive(ctx context.Context) ([]domain.RawIncident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read sample dataset: %w", err)
	}
	raws, err := DecodeList(data)
	if err != nil {
		return nil, fmt.Errorf("read sample dataset %s: %w", f.path, err)
	}
	return raws, nil
}
