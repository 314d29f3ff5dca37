package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/naccdata/identifier-provisioning/pkg/common/logger"
	"github.com/naccdata/identifier-provisioning/pkg/common/models"
	"github.com/naccdata/identifier-provisioning/pkg/demographics"
	"github.com/naccdata/identifier-provisioning/pkg/identifiers"
)

// Service decides whether a new-enrollment report may be provisioned a
// fresh NACCID. The checks run in a fixed order because each one
// short-circuits and determines the reported error kind: existing
// center identity, then existing GUID, then demographic match.
type Service struct {
	ids           identifiers.Store
	demo          demographics.Store
	fingerprinter *demographics.Fingerprinter
	tx            Tx
}

func NewService(ids identifiers.Store, demo demographics.Store, fingerprinter *demographics.Fingerprinter, tx Tx) *Service {
	return &Service{ids: ids, demo: demo, fingerprinter: fingerprinter, tx: tx}
}

func (s *Service) Enroll(ctx context.Context, req models.EnrollmentRequest) (*identifiers.IdentifierRecord, error) {
	identity := models.CenterIdentity{ADCID: req.ADCID, PTID: req.PTID}

	existing, err := s.ids.LookupByCenterIdentity(ctx, identity)
	if err != nil && !errors.Is(err, identifiers.ErrNotFound) {
		return nil, fmt.Errorf("checking center identity: %w", err)
	}
	if existing != nil {
		return nil, &ExistingIdentifierError{Identity: identity, NACCID: existing.NACCID}
	}

	if req.GUID != "" {
		existing, err := s.ids.LookupByGUID(ctx, req.GUID)
		if err != nil && !errors.Is(err, identifiers.ErrNotFound) {
			return nil, fmt.Errorf("checking GUID: %w", err)
		}
		if existing != nil {
			return nil, &ExistingGuidError{GUID: req.GUID, NACCID: existing.NACCID}
		}
	}

	fingerprint := s.fingerprinter.Fingerprint(req.Demographics)
	candidates, err := s.demo.FindMatches(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("checking demographics: %w", err)
	}
	if len(candidates) > 0 {
		return nil, &PossibleDuplicateError{Candidates: candidates}
	}

	var record *identifiers.IdentifierRecord
	err = s.tx.RunInTx(ctx, func(stores TxStores) error {
		created, err := stores.Identifiers.Create(ctx, identity, req.GUID)
		if err != nil {
			return err
		}
		if err := stores.Demographics.Add(ctx, created.NACCID, fingerprint); err != nil {
			return fmt.Errorf("recording fingerprint: %w", err)
		}
		record = created
		return nil
	})
	if err != nil {
		// A concurrent enrollment may win the race between the checks
		// above and the create; the store's duplicate error is
		// translated to the same domain error the check would have
		// produced.
		var dup *identifiers.DuplicateIdentityError
		if errors.As(err, &dup) {
			if dup.Identity != nil {
				return nil, &ExistingIdentifierError{Identity: *dup.Identity, NACCID: dup.NACCID}
			}
			return nil, &ExistingGuidError{GUID: dup.GUID, NACCID: dup.NACCID}
		}
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"naccid": record.NACCID,
		"adcid":  req.ADCID,
		"ptid":   req.PTID,
	}).Info("provisioned new participant identifier")
	return record, nil
}
