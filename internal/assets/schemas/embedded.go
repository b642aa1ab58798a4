// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time to ensure the CLI and library work
// correctly regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// SiteManifestSchema is the embedded site-manifest JSON schema.
//
// This allows manifest validation to work in installed binaries and library
// consumers without requiring the schema files to be present on disk.
//
//go:embed site-manifest.schema.json
var SiteManifestSchema []byte
