// Package catalog lists model files available for loading.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"llamabridge/internal/common/fsutil"
	"llamabridge/pkg/types"
)

// DefaultExtensions are the model container formats picked up by LoadDir.
var DefaultExtensions = []string{".gguf", ".bin"}

// Scanner finds model files by extension (case-insensitive).
type Scanner struct {
	exts []string
}

// NewScanner returns a Scanner for the given extensions, or DefaultExtensions when none are given.
func NewScanner(exts ...string) *Scanner {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	norm := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		norm = append(norm, e)
	}
	return &Scanner{exts: norm}
}

// Scan reads dir (a leading ~ is expanded) and returns matching files sorted by ID.
// ID is the full filename; Name strips the extension; Path is absolute.
func (s *Scanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext, ok := s.match(name)
		if !ok {
			continue
		}
		p := filepath.Join(abs, name)
		mdl := types.Model{
			ID:     name,
			Name:   strings.TrimSuffix(name, filepath.Ext(name)),
			Path:   p,
			Format: strings.TrimPrefix(ext, "."),
		}
		if info, err := e.Info(); err == nil {
			mdl.SizeMB = fsutil.SizeMB(info.Size())
		}
		models = append(models, mdl)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

func (s *Scanner) match(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, e := range s.exts {
		if strings.HasSuffix(lower, e) {
			return e, true
		}
	}
	return "", false
}

// LoadDir scans dir with the default extensions.
func LoadDir(dir string) ([]types.Model, error) {
	return NewScanner().Scan(dir)
}

// Catalog serves the model list for a fixed directory.
type Catalog struct {
	dir     string
	scanner *Scanner
}

// New returns a Catalog rooted at dir. An empty or missing dir yields an empty list.
func New(dir string) *Catalog {
	return &Catalog{dir: dir, scanner: NewScanner()}
}

// List rescans the directory on every call so newly copied models show up.
func (c *Catalog) List() ([]types.Model, error) {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return nil, nil
	}
	dir, err := fsutil.ExpandHome(c.dir)
	if err != nil {
		return nil, err
	}
	// A models directory that was never created just has no models yet.
	if !fsutil.PathExists(dir) {
		return nil, nil
	}
	return c.scanner.Scan(dir)
}
