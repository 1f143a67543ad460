// Command generate_schema writes the reference schema snapshots of every
// supported database next to the migrations they are built from.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"playground-go/internal/database"
)

func main() {
	outputs := []struct {
		file     string
		generate func() (string, error)
	}{
		{database.SQLiteSchemaFile, database.SQLiteSchema},
		{database.PostgresSchemaFile, database.PostgresSchema},
	}

	for _, out := range outputs {
		schema, err := out.generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Generating %s: %v\n", out.file, err)
			os.Exit(1)
		}
		path := filepath.Join("internal", "database", out.file)
		if err := os.WriteFile(path, []byte(schema), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s from migrations\n", path)
	}
}
