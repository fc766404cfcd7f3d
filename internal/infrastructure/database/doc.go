// Package database provides SQLite connectivity for the agent's local state.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Forward-only schema migrations from an fs.FS
//   - Connection lifecycle and health checks
//
// The state file holds small upserted tables (last sensor values, last
// acknowledged desired version). It is not a telemetry history.
//
// Usage:
//
//	db, err := database.Open(cfg.State)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
