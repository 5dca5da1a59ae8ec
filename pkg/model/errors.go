package model

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnknownRelation is returned when an operation names a relation the
	// container does not carry.
	ErrUnknownRelation = errors.New("unknown relation")
	// ErrNotFound is returned when an entity is not found in its list.
	ErrNotFound = errors.New("entity not found")
	// ErrBlobNotFound is returned by blob stores when a named blob is absent.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrVersionTooNew is returned when a persisted blob carries a schema
	// version newer than this build supports. Decoding refuses rather than
	// guessing; the caller falls back to empty state.
	ErrVersionTooNew = errors.New("persisted version newer than supported")
	// ErrMalformedBlob is returned when a persisted blob fails structural
	// parsing or its checksum does not match.
	ErrMalformedBlob = errors.New("malformed persisted blob")
	// ErrStoreClosed is returned when an operation is attempted after Close.
	ErrStoreClosed = errors.New("store closed")
	// ErrUnavailable is returned by the remote client when the service
	// reports it cannot serve the request.
	ErrUnavailable = errors.New("remote service unavailable")
	// ErrCanceled is returned when the operation is canceled by the caller.
	ErrCanceled = errors.New("operation canceled")
)

// WrapError converts context cancellation into ErrCanceled and passes
// everything else through unchanged.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or
// deadline exceeded. It checks both direct context errors and wrapped errors
// surfaced by transport layers as strings.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
