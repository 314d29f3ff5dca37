package models

import (
	"fmt"
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // identifier.provisioned, transfer.matched, transfer.pending
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// CenterIdentity is the identity a center assigns to a participant:
// the center's ADCID plus its local participant ID (PTID).
type CenterIdentity struct {
	ADCID int    `json:"adcid"`
	PTID  string `json:"ptid"`
}

func (c CenterIdentity) String() string {
	return fmt.Sprintf("(%d,%s)", c.ADCID, c.PTID)
}

// Enrollment and transfer requests as submitted by centers, already
// deserialized from the enrollment form by the intake pipeline.
type EnrollmentRequest struct {
	ADCID        int                    `json:"adcid"`
	PTID         string                 `json:"ptid"`
	GUID         string                 `json:"guid,omitempty"`
	Demographics map[string]interface{} `json:"demographics"`
}

type TransferRequest struct {
	TransferringOut  bool            `json:"transferring_out"`
	ReportingADCID   int             `json:"reporting_adcid"`
	CounterpartADCID *int            `json:"counterpart_adcid,omitempty"`
	OldIdentity      *CenterIdentity `json:"old_identity,omitempty"`
	NewIdentity      *CenterIdentity `json:"new_identity,omitempty"`
	ClaimedNACCID    string          `json:"claimed_naccid,omitempty"`
}

// ProvisionRecord is one row of a submitted batch. Exactly one of the
// two members must be set; the coordinator classifies on that.
type ProvisionRecord struct {
	Enrollment *EnrollmentRequest `json:"enrollment,omitempty"`
	Transfer   *TransferRequest   `json:"transfer,omitempty"`
}

type BatchRequest struct {
	Records []ProvisionRecord `json:"records"`
}

// Outcome statuses.
const (
	StatusProvisioned = "provisioned"
	StatusMatched     = "matched"
	StatusPending     = "pending"
	StatusError       = "error"
)

// Error codes reported on outcomes. The set is closed: callers can
// switch exhaustively when rendering error reports.
const (
	CodeExistingIdentifier   = "existing-identifier"
	CodeExistingGUID         = "existing-guid"
	CodePossibleDuplicate    = "possible-duplicate"
	CodeUnknownPriorIdentity = "unknown-prior-identity"
	CodeIdentityMismatch     = "identity-mismatch"
	CodeMissingInformation   = "missing-information"
	CodeDuplicateIdentity    = "duplicate-identity"
	CodeInvalidRecord        = "invalid-record"
	CodeInternal             = "internal"
)

// Outcome is the per-record result of a batch. A fault on one record
// never aborts the rest of the batch.
type Outcome struct {
	Index      int      `json:"index"`
	Status     string   `json:"status"`
	NACCID     string   `json:"naccid,omitempty"`
	Matched    bool     `json:"matched,omitempty"`
	PendingID  string   `json:"pending_id,omitempty"`
	Code       string   `json:"code,omitempty"`
	Message    string   `json:"message,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

type BatchResponse struct {
	Outcomes  []Outcome `json:"outcomes"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}
