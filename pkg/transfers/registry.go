package transfers

import (
	"context"
	"errors"

	"github.com/naccdata/identifier-provisioning/pkg/common/models"
)

var (
	ErrNoMatch  = errors.New("no matching pending transfer")
	ErrNotFound = errors.New("pending transfer not found")
)

// MatchCriteria is the view of a transfer report used to find its
// counterpart pending record.
type MatchCriteria struct {
	OldIdentity      models.CenterIdentity
	NewIdentity      *models.CenterIdentity
	ReportingADCID   int
	CounterpartADCID *int
}

// Registry owns all pending transfer records. The processor only reads
// and updates through these operations, keeping the registry the sole
// source of truth for outstanding transfers.
type Registry interface {
	Insert(ctx context.Context, record *PendingTransfer) error
	Get(ctx context.Context, id string) (*PendingTransfer, error)

	// FindMatchingOutgoing returns an OUTGOING record awaiting a match
	// that satisfies the criteria filed by an incoming report;
	// FindMatchingIncoming is the mirror image. Both return ErrNoMatch
	// when nothing qualifies.
	FindMatchingOutgoing(ctx context.Context, criteria MatchCriteria) (*PendingTransfer, error)
	FindMatchingIncoming(ctx context.Context, criteria MatchCriteria) (*PendingTransfer, error)

	// ClaimMatch is the consume-once form of MarkMatched: it transitions
	// an AWAITING_MATCH record to MATCHED and reports whether this caller
	// won the transition. Of two concurrent claims exactly one returns
	// true, which is what the processor's match terminals rely on.
	ClaimMatch(ctx context.Context, id string) (bool, error)

	// MarkMatched is the idempotent form of ClaimMatch, for callers that
	// only need the terminal state: marking a record MATCHED twice is a
	// no-op, not an error.
	MarkMatched(ctx context.Context, id string) error

	ListPending(ctx context.Context, adcid int) ([]PendingTransfer, error)
}

// matches applies the exact-equality predicate between a pending record
// and the criteria of the report arriving now. Fields absent on either
// side do not veto the match; fields present on both must agree.
func matches(record *PendingTransfer, criteria MatchCriteria) bool {
	old := record.OldIdentity()
	if old == nil || *old != criteria.OldIdentity {
		return false
	}

	if recordNew := record.NewIdentity(); recordNew != nil && criteria.NewIdentity != nil {
		if *recordNew != *criteria.NewIdentity {
			return false
		}
	}

	if record.CounterpartADCID != nil && *record.CounterpartADCID != criteria.ReportingADCID {
		return false
	}
	if criteria.CounterpartADCID != nil && *criteria.CounterpartADCID != record.ReportedBy {
		return false
	}
	return true
}
