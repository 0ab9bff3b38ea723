/*
Package types provides the shared data structures and interfaces for metacache.

The metadata layer sits between a filesystem front end and an object store:

	┌─────────────────────────────────────────────┐
	│        filesystem front end / CLI           │
	│      (cmd/metacache, internal/filesystem)   │
	└─────────────────────────────────────────────┘
	          │                        │
	┌─────────┴──────────┐   ┌─────────┴─────────┐
	│  metadata caches   │   │   listing         │
	│  (internal/cache)  │   │ (internal/objlist)│
	└────────────────────┘   └───────────────────┘
	          │
	┌─────────┴──────────────────────────────────┐
	│           Backend (internal/storage/s3)     │
	└─────────────────────────────────────────────┘

# Backend

Backend abstracts the read-side object store operations the metadata layer
needs: HEAD for attributes, delimited paginated LIST for directory contents,
and GET for symlink targets. Implementations translate their not-found
conditions into OBJECT_NOT_FOUND errors from pkg/errors.

# Listing

ListPage carries one page of a delimited listing. Subdirectories reported as
common prefixes appear as ListEntry values with IsDir set; the directory
normalizer in internal/objlist folds the various directory naming
conventions into a single canonical form.

# Statistics

CacheStats is the snapshot returned by the metadata cache's Stats method and
printed by the CLI.
*/
package types
