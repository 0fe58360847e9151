package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

const purgeConcurrency = 8

// PurgeImages deletes uploaded objects after a report is finalized. Deletes
// run concurrently and every path is attempted even when some fail; the
// first failure is returned so the caller can record a warning.
func PurgeImages(ctx context.Context, images ImageStore, paths []string) error {
	var g errgroup.Group
	g.SetLimit(purgeConcurrency)
	for _, path := range paths {
		g.Go(func() error {
			if err := images.Delete(ctx, path); err != nil {
				slog.Warn("Failed to delete uploaded image.", "path", path, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
