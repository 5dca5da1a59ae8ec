// Package blob defines the durable persistence substrate for store state.
// A Store holds opaque named payloads; the engine writes one blob per
// logical store and reads it back on startup.
package blob

import "context"

// Store persists named state blobs.
type Store interface {
	// Read returns the payload stored under name, or model.ErrBlobNotFound
	// when no blob exists.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write stores the payload under name, replacing any previous value.
	Write(ctx context.Context, name string, data []byte) error

	// Delete removes the blob stored under name. Deleting an absent blob
	// is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases the underlying backend.
	Close() error
}
