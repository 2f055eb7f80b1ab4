// Package services holds the mutation entrypoints behind the HTTP
// layer. Every operation takes an untyped payload, validates it in a
// fixed order (required fields, field types, referenced entities,
// uniqueness), performs the storage call, and publishes a cache
// invalidation for the affected path.
//
// Storage failure causes are logged with context but surfaced to the
// caller as a generic message only.
package services

import (
	"context"
	"errors"
	"log/slog"
)

// Revalidator tells downstream consumers that the data behind a path
// changed. A nil Revalidator disables publishing without changing any
// other behavior; a publish failure never fails the mutation.
type Revalidator interface {
	Invalidate(ctx context.Context, path string) error
}

var (
	ErrDatabaseUpdate = errors.New("database update failed")
	ErrDatabaseDelete = errors.New("database delete failed")
)

func revalidate(ctx context.Context, r Revalidator, path string) {
	if r == nil {
		slog.DebugContext(ctx, "Revalidator not available, skipping invalidation", "path", path)
		return
	}
	if err := r.Invalidate(ctx, path); err != nil {
		slog.ErrorContext(ctx, "Failed to publish invalidation",
			"path", path, "error", err)
	}
}
