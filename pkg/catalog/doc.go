// Package catalog discovers framework definitions on disk.
//
// Frameworks live in a two or three level directory hierarchy under a
// root: <root>/<identifier>/<version>/framework.yaml, with an optional
// profile level at <root>/<identifier>/<version>/Profile/<profile>/
// framework.yaml. Each manifest is parsed and validated independently;
// a malformed entry is logged and skipped so one broken definition never
// hides the rest.
package catalog
