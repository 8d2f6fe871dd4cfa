package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

// Schema files live next to this package and ship inside the binary, so
// a deploy never needs the source tree on disk.
var (
	//go:embed postgres/*.sql
	PostgresFS embed.FS

	//go:embed clickhouse/*.sql
	ClickhouseFS embed.FS
)

// sqlFiles lists the .sql files directly under dir, sorted by name.
// File naming (001_, 002_, ...) is the migration order.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}
