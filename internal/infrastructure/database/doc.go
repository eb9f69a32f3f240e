// Package database opens the SQLite file that holds the run history.
//
// The database runs in WAL mode with a busy timeout and a single pooled
// connection, matching SQLite's single-writer model. The file is created
// with 0600 permissions.
//
// Schema changes are plain SQL files named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql. Migrate takes the
// filesystem holding them, normally the embed.FS exported by the
// top-level migrations package:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a
// default, and every up file has a matching down file.
package database
