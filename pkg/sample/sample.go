// Package sample bundles the demo seed script and generates synthetic
// INSERT statements for batch-splitting demos.
package sample

import (
	"embed"

	"github.com/wemcdonald/sqlseed/pkg/workflow"
)

// SeedFile is the name of the seed script inside FS
const SeedFile = "seed.sql"

// FS holds the bundled scripts
//
//go:embed seed.sql
var FS embed.FS

// Script returns the bundled seed script
func Script() string {
	raw, err := FS.ReadFile(SeedFile)
	if err != nil {
		// The file is embedded at build time.
		panic(err)
	}
	return string(raw)
}

// Groups returns the table groups of the seed script
func Groups() workflow.Groups {
	return workflow.Groups{
		Reference: []string{"Genre", "MediaType"},
		Core:      []string{"Artist", "Album", "Track"},
		Business:  []string{"Customer", "Invoice", "InvoiceLine"},
	}
}
