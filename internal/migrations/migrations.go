package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// InitialSchema returns the queue database schema. Migration files are
// embedded so the client binary works from any working directory, and
// applied in lexical order.
func InitialSchema() (string, error) {
	entries, err := fs.ReadDir(schemaFS, "schema")
	if err != nil {
		return "", fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var schema string
	for _, name := range names {
		content, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return "", fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		schema += string(content) + "\n"
	}

	if schema == "" {
		return "", fmt.Errorf("no embedded migrations found")
	}
	return schema, nil
}
