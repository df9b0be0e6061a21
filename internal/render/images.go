package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// ImageDirSource serves pre-rendered page images, one file per page, ordered by file name
type ImageDirSource struct {
	files  []string
	logger *logger.Logger
}

// OpenImageDir lists the page images in dir
func OpenImageDir(dir string, log *logger.Logger) (*ImageDirSource, error) {
	if log == nil {
		log = logger.Get()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRender, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no page images in %s", model.ErrRender, dir)
	}
	sort.Strings(files)

	log.Debugw("Opened image directory", "dir", dir, "pages", len(files))
	return &ImageDirSource{files: files, logger: log}, nil
}

// PageCount returns the number of page images
func (s *ImageDirSource) PageCount() int {
	return len(s.files)
}

// Page returns the raw bytes of the page image at index
func (s *ImageDirSource) Page(ctx context.Context, index int) ([]byte, error) {
	if err := checkIndex(index, len(s.files)); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.files[index])
	if err != nil {
		return nil, fmt.Errorf("%w: reading page %d: %w", model.ErrRender, index, err)
	}
	return data, nil
}

// Close is a no-op
func (s *ImageDirSource) Close() error {
	return nil
}
