package pose

import (
	"context"
	"errors"
	"sync"
)

// ErrExhausted is returned by ReplayEstimator once every recorded pose was served.
var ErrExhausted = errors.New("pose: replay exhausted")

// Estimator turns one encoded video frame into a pose. Implementations wrap
// a concrete pose-detection provider; analyzers depend only on the Pose it
// returns.
type Estimator interface {
	Estimate(ctx context.Context, image []byte) (Pose, error)
	Close() error
}

// ReplayEstimator serves previously recorded poses in order, ignoring the
// image payload. It stands in for a live provider when re-running captures.
type ReplayEstimator struct {
	mu    sync.Mutex
	poses []Pose
	next  int
}

// NewReplayEstimator returns an estimator that replays poses in order.
func NewReplayEstimator(poses []Pose) *ReplayEstimator {
	return &ReplayEstimator{poses: poses}
}

// Estimate returns the next recorded pose. A nil entry is returned as an
// empty pose, which analyzers treat as low confidence.
func (r *ReplayEstimator) Estimate(ctx context.Context, _ []byte) (Pose, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.poses) {
		return nil, ErrExhausted
	}
	p := r.poses[r.next]
	r.next++
	return p.Clone(), nil
}

// Close releases nothing; it exists to satisfy Estimator.
func (r *ReplayEstimator) Close() error { return nil }
