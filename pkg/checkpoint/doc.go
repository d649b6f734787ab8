// Package checkpoint records per-item outcomes across runs and guards an
// output directory against concurrent runs.
//
// For every output root there is one ledger holding the latest outcome of
// each item (downloaded, skipped, failed, unsupported) with the files written
// and the error text, plus a lock file taken with flock for the duration of a
// run. Both are kept in the platform data directory:
//   - Linux: $XDG_DATA_HOME/dyfav/checkpoints/ or ~/.local/share/dyfav/checkpoints/
//   - macOS: ~/Library/Application Support/dyfav/checkpoints/
//   - Windows: %APPDATA%/dyfav/checkpoints/
//
// The ledger is informational. Whether an item is downloaded again is decided
// by the files on disk, never by the ledger.
package checkpoint
