package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

	// Migrations run against postgres in deployments and sqlite in tests; these
	// only exist on one side.
	nonPortableSQL = map[string]*regexp.Regexp{
		"JSONB":               regexp.MustCompile(`(?i)\bjsonb\b`),
		"SERIAL":              regexp.MustCompile(`(?i)\b(big)?serial\b`),
		"gen_random_uuid()":   regexp.MustCompile(`(?i)\bgen_random_uuid\s*\(`),
		"AUTOINCREMENT":       regexp.MustCompile(`(?i)\bautoincrement\b`),
		"::type casts":        regexp.MustCompile(`::[a-z]`),
		"ADD CONSTRAINT":      regexp.MustCompile(`(?i)\badd\s+constraint\b`),
		"CREATE TYPE (enums)": regexp.MustCompile(`(?i)\bcreate\s+type\b`),
	}
)

// ValidateDir validates the migrations in dir. An empty dir checks the set
// embedded in the binary.
func ValidateDir(dir string) error {
	if dir == "" {
		return ValidateFS(embedded, embeddedDir)
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateFS checks filenames, version uniqueness, goose headers and that each
// file avoids dialect-specific SQL.
func ValidateFS(fsys fs.FS, dir string) error {
	versions, err := listVersions(fsys, dir)
	if err != nil {
		return err
	}

	for _, v := range versions {
		b, err := fs.ReadFile(fsys, path.Join(dir, v.file))
		if err != nil {
			return fmt.Errorf("read file %q: %w", v.file, err)
		}

		txt := string(b)
		if !strings.Contains(txt, "-- +goose Up") {
			return fmt.Errorf("migration %q missing \"-- +goose Up\"", v.file)
		}
		if !strings.Contains(txt, "-- +goose Down") {
			return fmt.Errorf("migration %q missing \"-- +goose Down\"", v.file)
		}
		body := stripComments(txt)
		for _, label := range sortedKeys(nonPortableSQL) {
			if nonPortableSQL[label].MatchString(body) {
				return fmt.Errorf("migration %q uses %s, which does not run on both postgres and sqlite", v.file, label)
			}
		}
	}
	return nil
}

type migrationFile struct {
	version string
	file    string
}

// listVersions returns the sql migrations in dir ordered by version.
func listVersions(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	var out []migrationFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name
		out = append(out, migrationFile{version: m[1], file: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func stripComments(sql string) string {
	lines := strings.Split(sql, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(m map[string]*regexp.Regexp) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
