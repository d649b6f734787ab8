// Package materializer writes favorited items to disk.
//
// A video becomes {id}.mp4 plus the {id}.json sidecar. An image set becomes
// {id}_1.<ext> ... {id}_n.<ext> plus the sidecar. Both live in a folder named
// after the sanitized title, falling back to the id.
//
// Materialize is idempotent: when the expected files for an item already
// exist, it returns StatusSkipped without touching the network or waiting on
// the item pacer.
package materializer
