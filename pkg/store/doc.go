// Package store persists item, comment and creator metadata.
//
// Backends are interchangeable behind Store and are selected by the
// storage.backend config key:
//
//	none      discard records
//	csv       {dir}/csv/{seq}_{crawler}_{kind}_{date}.csv, UTF-8 with BOM
//	json      {dir}/json/{crawler}_{kind}_{date}.json, optional word frequency
//	sqlite    local database file (modernc.org/sqlite, no cgo)
//	postgres  pgx through database/sql
//	mongo     one collection per kind
//
// All backends upsert on the natural key (aweme_id, comment_id, user_id).
// add_ts is set once when a record is created and last_modify_ts on every
// write. The sqlite, postgres and mongo backends never create a content
// record without title or desc; they return ErrNotInserted instead. The file
// backends insert every new key.
package store
