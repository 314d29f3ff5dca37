package transfers

import (
	"fmt"

	"github.com/naccdata/identifier-provisioning/pkg/common/models"
)

// UnknownPriorIdentityError reports an incoming transfer citing a prior
// identity that was never enrolled.
type UnknownPriorIdentityError struct {
	Identity models.CenterIdentity
}

func (e *UnknownPriorIdentityError) Error() string {
	return fmt.Sprintf("no enrolled participant for prior identity %s", e.Identity)
}

// IdentityMismatchError reports a claimed NACCID that does not match
// the one on file for the prior identity. This is a data inconsistency
// requiring human review; no state is mutated.
type IdentityMismatchError struct {
	Identity models.CenterIdentity
	Claimed  string
	OnFile   string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("claimed NACCID %s does not match %s on file for %s",
		e.Claimed, e.OnFile, e.Identity)
}

// MissingInformationError reports a transfer that cannot proceed until
// the reporter supplies the named field. A pending record is left
// behind so the follow-up can be tracked.
type MissingInformationError struct {
	Field     string
	PendingID string
}

func (e *MissingInformationError) Error() string {
	return fmt.Sprintf("transfer report missing %s", e.Field)
}
