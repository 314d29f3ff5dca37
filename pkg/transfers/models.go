package transfers

import (
	"time"

	"github.com/naccdata/identifier-provisioning/pkg/common/models"
	"gorm.io/datatypes"
)

type Direction string

const (
	DirectionOutgoing Direction = "OUTGOING"
	DirectionIncoming Direction = "INCOMING"
)

type State string

const (
	StateAwaitingIdentification State = "AWAITING_IDENTIFICATION"
	StateAwaitingConfirmation   State = "AWAITING_CONFIRMATION"
	StateAwaitingMatch          State = "AWAITING_MATCH"
	StateMatched                State = "MATCHED"
)

// PendingTransfer is one side of a transfer that has not yet been
// resolved against its counterpart report. Records are never deleted;
// matched records stay as the audit trail of the transfer.
type PendingTransfer struct {
	ID               string            `gorm:"primaryKey" json:"id"`
	Direction        Direction         `gorm:"column:direction;index" json:"direction"`
	State            State             `gorm:"column:state;index" json:"state"`
	ReportedBy       int               `gorm:"column:reported_by;index" json:"reported_by"`
	CounterpartADCID *int              `gorm:"column:counterpart_adcid" json:"counterpart_adcid,omitempty"`
	OldADCID         *int              `gorm:"column:old_adcid" json:"old_adcid,omitempty"`
	OldPTID          *string           `gorm:"column:old_ptid" json:"old_ptid,omitempty"`
	NewADCID         *int              `gorm:"column:new_adcid" json:"new_adcid,omitempty"`
	NewPTID          *string           `gorm:"column:new_ptid" json:"new_ptid,omitempty"`
	NACCID           *string           `gorm:"column:naccid" json:"naccid,omitempty"`
	Report           datatypes.JSONMap `gorm:"column:report" json:"report,omitempty"`
	CreatedAt        time.Time         `gorm:"column:created_at" json:"created_at"`
	MatchedAt        *time.Time        `gorm:"column:matched_at" json:"matched_at,omitempty"`
}

func (PendingTransfer) TableName() string {
	return "pending_transfers"
}

func (p *PendingTransfer) OldIdentity() *models.CenterIdentity {
	if p.OldADCID == nil || p.OldPTID == nil {
		return nil
	}
	return &models.CenterIdentity{ADCID: *p.OldADCID, PTID: *p.OldPTID}
}

func (p *PendingTransfer) NewIdentity() *models.CenterIdentity {
	if p.NewADCID == nil || p.NewPTID == nil {
		return nil
	}
	return &models.CenterIdentity{ADCID: *p.NewADCID, PTID: *p.NewPTID}
}

func (p *PendingTransfer) SetOldIdentity(identity *models.CenterIdentity) {
	if identity == nil {
		return
	}
	adcid, ptid := identity.ADCID, identity.PTID
	p.OldADCID = &adcid
	p.OldPTID = &ptid
}

func (p *PendingTransfer) SetNewIdentity(identity *models.CenterIdentity) {
	if identity == nil {
		return
	}
	adcid, ptid := identity.ADCID, identity.PTID
	p.NewADCID = &adcid
	p.NewPTID = &ptid
}
