// Package sqlite persists field snapshots in a SQLite database.
//
// Responsibilities:
//   - open the database with the shared pragmas and apply the embedded
//     schema migrations (golang-migrate, iofs source)
//   - save, load, list and delete named snapshots of centered grids,
//     staggered grids and point clouds
//
// Values are stored as gob+gzip blobs next to the extrapolation name and
// a few summary columns for listing.
//
// Dependency rule: this package depends on internal/field and never the
// other way round.
package sqlite
