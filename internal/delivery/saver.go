package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/spotdown/internal/models"
)

// DirSaver writes delivered files into a directory.
type DirSaver struct {
	Dir string
}

// Save writes file to <Dir>/<FileName>, creating Dir when missing.
func (s DirSaver) Save(_ context.Context, file *models.DeliveredFile) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.Dir, filepath.Base(file.FileName))
	if err := os.WriteFile(path, file.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", file.FileName, err)
	}
	return path, nil
}
