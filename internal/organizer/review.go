package organizer

import (
	"context"
	"os"

	"scenematch/internal/logging"
	"scenematch/internal/match"
)

// ResolveReview moves a file parked in the ambiguous directory into the
// library under the manually chosen candidate and removes its review sidecar.
func (o *Organizer) ResolveReview(ctx context.Context, currentPath string, chosen *match.CandidateScene) (string, error) {
	logger := logging.WithContext(ctx, o.logger)
	target, err := o.placeAccepted(logger, currentPath, chosen)
	if err != nil {
		return "", err
	}
	removeSidecar(currentPath)
	return target, nil
}

// RejectReview moves a file parked in the ambiguous directory to the failed
// directory and removes its review sidecar.
func (o *Organizer) RejectReview(ctx context.Context, currentPath string) (string, error) {
	logger := logging.WithContext(ctx, o.logger)
	target, err := o.placeFailed(logger, currentPath)
	if err != nil {
		return "", err
	}
	removeSidecar(currentPath)
	return target, nil
}

func removeSidecar(path string) {
	_ = os.Remove(sidecarPath(path))
}
