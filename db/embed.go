// Package db embeds the checkout schema so the server can migrate itself
// on startup without shipping migration files alongside the binary.
package db

import _ "embed"

// Schema holds the DDL for the catalog, discount, order, payment attempt,
// and API key tables.
//
//go:embed migrations/001_schema.sql
var Schema string
