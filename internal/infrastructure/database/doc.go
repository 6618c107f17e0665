// Package database opens the SQLite audit store and applies its schema.
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are forward-only files named
// YYYYMMDD_HHMMSS_description.up.sql. Queries elsewhere use bound
// parameters; the file is chmod 0600 on open.
package database
