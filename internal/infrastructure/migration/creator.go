package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const upSuffix = ".up.sql"

// File is a scaffolded migration pair
type File struct {
	Version  uint
	Name     string
	UpPath   string
	DownPath string
}

// Create writes the next numbered up/down pair into dir
func Create(dir, name string) (*File, error) {
	name = sanitizeName(name)
	if name == "" {
		return nil, fmt.Errorf("migration name is empty")
	}

	existing, err := List(os.DirFS(dir))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	var next uint = 1
	if len(existing) > 0 {
		last, _ := parseVersion(existing[len(existing)-1])
		next = last + 1
	}

	base := fmt.Sprintf("%06d_%s", next, name)
	f := &File{
		Version:  next,
		Name:     name,
		UpPath:   filepath.Join(dir, base+upSuffix),
		DownPath: filepath.Join(dir, base+".down.sql"),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}
	if err := os.WriteFile(f.UpPath, []byte(header(name, "")), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := os.WriteFile(f.DownPath, []byte(header(name, " (Rollback)")), 0o644); err != nil {
		_ = os.Remove(f.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return f, nil
}

// List returns the base names of the migrations in fsys, ordered by version
func List(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), upSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), upSuffix))
	}
	sort.Slice(names, func(i, j int) bool {
		vi, _ := parseVersion(names[i])
		vj, _ := parseVersion(names[j])
		return vi < vj
	})
	return names, nil
}

func parseVersion(base string) (uint, error) {
	prefix, _, _ := strings.Cut(base, "_")
	v, err := strconv.ParseUint(prefix, 10, 32)
	return uint(v), err
}

func header(name, suffix string) string {
	return fmt.Sprintf("-- Migration: %s%s\n\n", name, suffix)
}

// sanitizeName lowercases name and joins words with single underscores
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}
