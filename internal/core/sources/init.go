// Package sources registers the import source definitions with the core
// registry. Import this package to ensure all sources are registered.
package sources

// Each source file uses init() to register its definition.
