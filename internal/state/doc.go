// Package state persists the small amount of device state the agent needs
// across restarts: the last value of every component field and the last
// desired property version it acknowledged.
//
// The store sits on the shared SQLite handle from the database package.
// Its tables come from the embedded migrations, so Migrate must run before
// the store is used.
package state
