package migrate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	markerUp    = "-- +goose Up"
	markerDown  = "-- +goose Down"
	markerBegin = "-- +goose StatementBegin"
	markerEnd   = "-- +goose StatementEnd"
)

// ValidateDir reports every problem in the migrations under dir: bad filenames, reused versions,
// missing or misordered goose sections, unbalanced statement blocks and an Up section with no SQL.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	var errs error
	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		if prev, ok := seen[m[1]]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name))
		}
		seen[m[1]] = name

		errs = multierr.Append(errs, validateFile(filepath.Join(dir, name)))
	}
	return errs
}

func validateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	var (
		section    string
		open       bool
		upSQL      bool
		sawUp      bool
		sawDown    bool
		lineNumber int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, markerUp):
			if sawUp || sawDown {
				return fmt.Errorf("%s:%d: unexpected %q", name, lineNumber, markerUp)
			}
			sawUp, section = true, "up"
		case strings.HasPrefix(line, markerDown):
			if !sawUp || sawDown {
				return fmt.Errorf("%s:%d: %q must follow a single %q", name, lineNumber, markerDown, markerUp)
			}
			if open {
				return fmt.Errorf("%s:%d: Up section ends inside a statement block", name, lineNumber)
			}
			sawDown, section = true, "down"
		case strings.HasPrefix(line, markerBegin):
			if open {
				return fmt.Errorf("%s:%d: nested %q", name, lineNumber, markerBegin)
			}
			open = true
		case strings.HasPrefix(line, markerEnd):
			if !open {
				return fmt.Errorf("%s:%d: %q without %q", name, lineNumber, markerEnd, markerBegin)
			}
			open = false
		case line == "" || strings.HasPrefix(line, "--"):
		default:
			if section == "up" {
				upSQL = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}

	switch {
	case !sawUp:
		return fmt.Errorf("migration %q missing %q", name, markerUp)
	case !sawDown:
		return fmt.Errorf("migration %q missing %q", name, markerDown)
	case open:
		return fmt.Errorf("migration %q has an unterminated statement block", name)
	case !upSQL:
		return fmt.Errorf("migration %q has no SQL in its Up section", name)
	}
	return nil
}
