// Package migrations holds the schema of the document stores.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
