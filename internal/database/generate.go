package database

// schema.sql and schema_postgres.sql are reference snapshots of the schema
// after all migrations. Regenerate them with:
//   go generate ./internal/database

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
