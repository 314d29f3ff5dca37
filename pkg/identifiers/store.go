package identifiers

import (
	"context"
	"errors"
	"fmt"

	"github.com/naccdata/identifier-provisioning/pkg/common/models"
)

var ErrNotFound = errors.New("identifier not found")

// DuplicateIdentityError reports that a center identity or GUID is
// already claimed by a provisioned participant. It is raised by the
// store itself on the write path, so two concurrent enrollments for the
// same identity cannot both succeed.
type DuplicateIdentityError struct {
	Identity *models.CenterIdentity
	GUID     string
	NACCID   string
}

func (e *DuplicateIdentityError) Error() string {
	if e.Identity != nil {
		return fmt.Sprintf("center identity %s already mapped to %s", e.Identity, e.NACCID)
	}
	return fmt.Sprintf("GUID %s already mapped to %s", e.GUID, e.NACCID)
}

// Store is the source of truth for provisioned identifiers. Mutating
// operations are atomic with their existence checks.
type Store interface {
	LookupByCenterIdentity(ctx context.Context, identity models.CenterIdentity) (*IdentifierRecord, error)
	LookupByGUID(ctx context.Context, guid string) (*IdentifierRecord, error)
	LookupByNACCID(ctx context.Context, naccid string) (*IdentifierRecord, error)
	ListByCenter(ctx context.Context, adcid int) ([]IdentifierRecord, error)

	// Create provisions a new NACCID for the identity. Fails with
	// DuplicateIdentityError if the identity or GUID is already claimed.
	Create(ctx context.Context, identity models.CenterIdentity, guid string) (*IdentifierRecord, error)

	// AddCenterIdentity links an additional center identity to an
	// existing NACCID on a confirmed transfer. Linking an identity that
	// is already active for the same NACCID is a no-op; an identity
	// claimed by any other participant fails with DuplicateIdentityError.
	AddCenterIdentity(ctx context.Context, naccid string, identity models.CenterIdentity) (*IdentifierRecord, error)
}
