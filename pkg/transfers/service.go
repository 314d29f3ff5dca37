package transfers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/naccdata/identifier-provisioning/pkg/common/logger"
	"github.com/naccdata/identifier-provisioning/pkg/common/models"
	"github.com/naccdata/identifier-provisioning/pkg/identifiers"
	"gorm.io/datatypes"
)

// errClaimLost aborts the match transaction when another report claimed
// the counterpart record first. The loser falls back to creating its
// own pending record.
var errClaimLost = errors.New("pending transfer claimed concurrently")

type Result struct {
	NACCID    string `json:"naccid,omitempty"`
	Matched   bool   `json:"matched"`
	PendingID string `json:"pending_id,omitempty"`
}

// Service drives the transfer state machine. Error terminals never
// mutate the identifier store; the success terminals link the new
// center identity atomically with marking the paired records MATCHED.
type Service struct {
	ids      identifiers.Store
	registry Registry
	tx       Tx
}

func NewService(ids identifiers.Store, registry Registry, tx Tx) *Service {
	return &Service{ids: ids, registry: registry, tx: tx}
}

func (s *Service) Process(ctx context.Context, req models.TransferRequest) (*Result, error) {
	if req.TransferringOut {
		return s.processOutgoing(ctx, req)
	}
	return s.processIncoming(ctx, req)
}

func (s *Service) processOutgoing(ctx context.Context, req models.TransferRequest) (*Result, error) {
	if req.OldIdentity == nil {
		pending, err := s.insertPending(ctx, req, DirectionOutgoing, StateAwaitingIdentification)
		if err != nil {
			return nil, err
		}
		return nil, &MissingInformationError{Field: "old_identity", PendingID: pending.ID}
	}

	criteria := MatchCriteria{
		OldIdentity:      *req.OldIdentity,
		NewIdentity:      req.NewIdentity,
		ReportingADCID:   req.ReportingADCID,
		CounterpartADCID: req.CounterpartADCID,
	}

	incoming, err := s.registry.FindMatchingIncoming(ctx, criteria)
	if err != nil && !errors.Is(err, ErrNoMatch) {
		return nil, err
	}

	if incoming != nil && incoming.NACCID != nil && incoming.NewIdentity() != nil {
		naccid := *incoming.NACCID
		newIdentity := *incoming.NewIdentity()

		err := s.completeMatch(ctx, req, DirectionOutgoing, incoming.ID, naccid, newIdentity)
		if err == nil {
			logger.Log.WithFields(map[string]interface{}{
				"naccid":  naccid,
				"pending": incoming.ID,
			}).Info("transfer matched by outgoing report")
			return &Result{NACCID: naccid, Matched: true}, nil
		}
		if !errors.Is(err, errClaimLost) {
			return nil, err
		}
	}

	pending, err := s.insertPending(ctx, req, DirectionOutgoing, StateAwaitingMatch)
	if err != nil {
		return nil, err
	}
	logger.Log.WithField("pending", pending.ID).Info("outgoing transfer awaiting counterpart report")
	return &Result{Matched: false, PendingID: pending.ID}, nil
}

func (s *Service) processIncoming(ctx context.Context, req models.TransferRequest) (*Result, error) {
	if req.OldIdentity == nil {
		pending, err := s.insertPending(ctx, req, DirectionIncoming, StateAwaitingIdentification)
		if err != nil {
			return nil, err
		}
		return nil, &MissingInformationError{Field: "old_identity", PendingID: pending.ID}
	}

	record, err := s.ids.LookupByCenterIdentity(ctx, *req.OldIdentity)
	if errors.Is(err, identifiers.ErrNotFound) {
		return nil, &UnknownPriorIdentityError{Identity: *req.OldIdentity}
	}
	if err != nil {
		return nil, fmt.Errorf("looking up prior identity: %w", err)
	}

	if req.ClaimedNACCID == "" {
		pending, err := s.insertPending(ctx, req, DirectionIncoming, StateAwaitingConfirmation)
		if err != nil {
			return nil, err
		}
		return nil, &MissingInformationError{Field: "claimed_naccid", PendingID: pending.ID}
	}

	if req.ClaimedNACCID != record.NACCID {
		return nil, &IdentityMismatchError{
			Identity: *req.OldIdentity,
			Claimed:  req.ClaimedNACCID,
			OnFile:   record.NACCID,
		}
	}

	if req.NewIdentity == nil {
		pending, err := s.insertPending(ctx, req, DirectionIncoming, StateAwaitingIdentification)
		if err != nil {
			return nil, err
		}
		return nil, &MissingInformationError{Field: "new_identity", PendingID: pending.ID}
	}

	criteria := MatchCriteria{
		OldIdentity:      *req.OldIdentity,
		NewIdentity:      req.NewIdentity,
		ReportingADCID:   req.ReportingADCID,
		CounterpartADCID: req.CounterpartADCID,
	}

	outgoing, err := s.registry.FindMatchingOutgoing(ctx, criteria)
	if err != nil && !errors.Is(err, ErrNoMatch) {
		return nil, err
	}

	if outgoing != nil {
		err := s.completeMatch(ctx, req, DirectionIncoming, outgoing.ID, record.NACCID, *req.NewIdentity)
		if err == nil {
			logger.Log.WithFields(map[string]interface{}{
				"naccid":  record.NACCID,
				"pending": outgoing.ID,
			}).Info("transfer matched by incoming report")
			return &Result{NACCID: record.NACCID, Matched: true}, nil
		}
		if !errors.Is(err, errClaimLost) {
			return nil, err
		}
	}

	pending, err := s.insertPending(ctx, req, DirectionIncoming, StateAwaitingMatch)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"naccid":  record.NACCID,
		"pending": pending.ID,
	}).Info("incoming transfer awaiting counterpart report")
	return &Result{NACCID: record.NACCID, Matched: false, PendingID: pending.ID}, nil
}

// completeMatch claims the counterpart record, links the new center
// identity, and archives this report as a MATCHED record, all in one
// transaction.
func (s *Service) completeMatch(ctx context.Context, req models.TransferRequest, direction Direction, counterpartID, naccid string, newIdentity models.CenterIdentity) error {
	return s.tx.RunInTx(ctx, func(stores TxStores) error {
		claimed, err := stores.Registry.ClaimMatch(ctx, counterpartID)
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}

		if _, err := stores.Identifiers.AddCenterIdentity(ctx, naccid, newIdentity); err != nil {
			return err
		}

		now := time.Now().UTC()
		archived := buildPending(req, direction, StateMatched)
		archived.NACCID = &naccid
		archived.MatchedAt = &now
		return stores.Registry.Insert(ctx, archived)
	})
}

func (s *Service) insertPending(ctx context.Context, req models.TransferRequest, direction Direction, state State) (*PendingTransfer, error) {
	pending := buildPending(req, direction, state)
	if err := s.registry.Insert(ctx, pending); err != nil {
		return nil, err
	}
	return pending, nil
}

func buildPending(req models.TransferRequest, direction Direction, state State) *PendingTransfer {
	pending := &PendingTransfer{
		Direction:        direction,
		State:            state,
		ReportedBy:       req.ReportingADCID,
		CounterpartADCID: req.CounterpartADCID,
		Report: datatypes.JSONMap{
			"transferring_out": req.TransferringOut,
			"reporting_adcid":  req.ReportingADCID,
		},
	}
	pending.SetOldIdentity(req.OldIdentity)
	pending.SetNewIdentity(req.NewIdentity)
	if req.ClaimedNACCID != "" {
		claimed := req.ClaimedNACCID
		pending.NACCID = &claimed
	}
	return pending
}
