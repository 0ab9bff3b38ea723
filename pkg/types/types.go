package types

import (
	"time"
)

// ObjectInfo represents metadata about an object as returned by a listing
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
}

// ListEntry is one name returned by a delimited listing. Common prefixes
// (subdirectories) are reported with IsDir set and a trailing slash.
type ListEntry struct {
	Name  string     `json:"name"`
	ETag  string     `json:"etag,omitempty"`
	IsDir bool       `json:"is_dir"`
	Info  ObjectInfo `json:"info"`
}

// ListPage is a single page of a paginated listing
type ListPage struct {
	Entries   []ListEntry `json:"entries"`
	Truncated bool        `json:"truncated"`
	// NextMarker is the key to resume after; empty when the backend does
	// not report one and callers should use the last name seen.
	NextMarker string `json:"next_marker,omitempty"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	NegativeHits   uint64  `json:"negative_hits"`
	Evictions      uint64  `json:"evictions"`
	Expirations    uint64  `json:"expirations"`
	Entries        int     `json:"entries"`
	SymlinkEntries int     `json:"symlink_entries"`
	PinnedEntries  int     `json:"pinned_entries"`
	Capacity       int     `json:"capacity"`
	HitRate        float64 `json:"hit_rate"`
	Utilization    float64 `json:"utilization"`
}
