package types

import (
	"context"
)

// Backend defines the read-side interface of an object store as seen by the
// metadata layer
type Backend interface {
	// HeadObject returns the object's response headers. A missing object is
	// reported as an OBJECT_NOT_FOUND error.
	HeadObject(ctx context.Context, key string) (map[string]string, error)

	// ListPage lists names directly under prefix, starting after marker.
	ListPage(ctx context.Context, prefix, marker string, maxKeys int) (ListPage, error)

	// GetObject returns the full object body.
	GetObject(ctx context.Context, key string) ([]byte, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
