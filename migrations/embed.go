// Package migrations bundles the schema files so the server binary can
// migrate without a checkout next to it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
