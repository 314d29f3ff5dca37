package demographics

import (
	"context"
)

// Store records the demographic fingerprint registered with each
// NACCID. There is deliberately no update or merge operation: once a
// conflict is flagged, resolution is human-adjudicated and the store
// only preserves the facts.
type Store interface {
	// FindMatches returns the NACCIDs whose fingerprint exactly matches.
	// An empty slice means no conflict.
	FindMatches(ctx context.Context, fingerprint Fingerprint) ([]string, error)

	Add(ctx context.Context, naccid string, fingerprint Fingerprint) error
}
