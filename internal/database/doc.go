// Package database stores the history of mirror runs in SQLite.
//
// Every run is saved twice: the complete report as JSON, for display,
// and one row per mirrored file (path, size, sha256), for comparing runs
// without decoding reports. The database is a single file in the XDG data
// directory, opened through the pure Go modernc.org/sqlite driver.
package database
