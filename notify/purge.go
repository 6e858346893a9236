package notify

import (
	"context"
	"errors"
	"time"
)

type Purger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Purge deletes every notification created before now-retention in a single
// bulk delete and returns how many were removed.
func Purge(ctx context.Context, p Purger, retention time.Duration, now time.Time) (int64, time.Time, error) {
	if retention <= 0 {
		return 0, time.Time{}, errors.New("retention must be positive")
	}
	cutoff := now.UTC().Add(-retention)
	n, err := p.DeleteOlderThan(ctx, cutoff)
	return n, cutoff, err
}
