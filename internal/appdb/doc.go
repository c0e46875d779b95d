// Package appdb manages the application's own SQLite database, which
// is separate from the read-only library catalogs. It stores user
// accounts, session tokens, and the audit trail of security-relevant
// events.
package appdb
