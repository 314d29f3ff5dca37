package enrollment

import (
	"fmt"
	"strings"

	"github.com/naccdata/identifier-provisioning/pkg/common/models"
)

// ExistingIdentifierError reports an enrollment for a center identity
// that already holds a NACCID; the submission is not a new enrollment.
type ExistingIdentifierError struct {
	Identity models.CenterIdentity
	NACCID   string
}

func (e *ExistingIdentifierError) Error() string {
	return fmt.Sprintf("participant already enrolled for %s as %s", e.Identity, e.NACCID)
}

// ExistingGuidError reports an enrollment citing a GUID that is already
// claimed by a provisioned participant.
type ExistingGuidError struct {
	GUID   string
	NACCID string
}

func (e *ExistingGuidError) Error() string {
	return fmt.Sprintf("participant already enrolled for GUID %s as %s", e.GUID, e.NACCID)
}

// PossibleDuplicateError reports that the submitted demographics
// exactly match one or more enrolled participants. The candidates go to
// manual review; no merge happens here.
type PossibleDuplicateError struct {
	Candidates []string
}

func (e *PossibleDuplicateError) Error() string {
	return fmt.Sprintf("demographics match enrolled participants %s",
		strings.Join(e.Candidates, ", "))
}
