// Package database opens the bridge's SQLite store and applies its schema.
//
// The store holds two things: config entries (one per door station,
// including credentials) and the event history backing the logbook.
//
// Connections use WAL mode, a busy timeout and a single writer. The file
// is chmod 0600 because entries contain device passwords.
//
// Migrations are embedded by the migrations package and applied in
// version order, each in its own transaction:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
