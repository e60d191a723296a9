// Package migrations contains all database migration files.
// Each migration file uses init() to call migration.Register().
// cmd/filemanager imports this package so every migration is registered at
// CLI startup.
package migrations
