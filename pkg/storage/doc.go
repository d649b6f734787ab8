// Package storage manages the on-disk media tree.
//
// Layout:
//
//	<root>/<sanitized title or id>/<id>.mp4
//	<root>/<sanitized title or id>/<id>_<n>.<ext>
//	<root>/<sanitized title or id>/<id>.json
//
// Files are always id-prefixed, so two items whose titles sanitize to the
// same folder name share a folder without clobbering each other.
//
// Every write is staged in a hidden ".<name>.*.part" file and renamed into
// place. NewManager removes stale staging files left by an interrupted run.
package storage
