package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Pair is the up/down file pair for one schema version.
type Pair struct {
	Version  string
	UpPath   string
	DownPath string
}

// Create writes a new migration pair into dir. Versions carry a
// 20060102150405 timestamp so lexical order matches creation order.
func Create(dir, name, description string) (*Pair, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations directory: %w", err)
	}

	now := time.Now()
	version := now.Format("20060102150405")
	base := version + "_" + sanitizeName(name)

	p := &Pair{
		Version:  version,
		UpPath:   filepath.Join(dir, base+".up.sql"),
		DownPath: filepath.Join(dir, base+".down.sql"),
	}

	up := header(name, description, now)
	down := header(name+" (rollback)", description, now)

	if err := os.WriteFile(p.UpPath, []byte(up), 0o644); err != nil {
		return nil, fmt.Errorf("write up migration: %w", err)
	}
	if err := os.WriteFile(p.DownPath, []byte(down), 0o644); err != nil {
		// A lone .up.sql makes golang-migrate refuse the whole
		// directory, so undo the first write.
		_ = os.Remove(p.UpPath)
		return nil, fmt.Errorf("write down migration: %w", err)
	}

	return p, nil
}

func header(title, description string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\n", title)
	fmt.Fprintf(&b, "-- Created: %s\n", now.Format(time.RFC3339))
	if description != "" {
		fmt.Fprintf(&b, "-- %s\n", description)
	}
	b.WriteString("\n")
	return b.String()
}

// sanitizeName lowercases a migration name and collapses separators
// into single underscores, dropping anything else.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if s := b.String(); s != "" && !strings.HasSuffix(s, "_") {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// List returns the base name of every migration pair in dir, in
// version order. A missing directory is treated as empty.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok {
			names = append(names, base)
		}
	}
	return names, nil
}
