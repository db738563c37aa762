// Package database provides the SQLite store behind the configuration
// entries (one row per configured weather station).
//
// Readings are never persisted here; only configuration lives in SQLite.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
