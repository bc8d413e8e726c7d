// Package schemas embeds the JSON Schemas for data files consumed by animelist.
package schemas

import "embed"

// OfflineDatabase is the schema file name for the anime-offline-database dump.
const OfflineDatabase = "offline_database.schema.json"

//go:embed *.schema.json
var files embed.FS

// Read returns the contents of an embedded schema file.
func Read(name string) ([]byte, error) {
	return files.ReadFile(name)
}

// Names lists every embedded schema file.
func Names() []string {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
