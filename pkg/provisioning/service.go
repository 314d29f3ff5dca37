package provisioning

import (
	"context"
	"errors"
	"time"

	"github.com/naccdata/identifier-provisioning/pkg/common/kafka"
	"github.com/naccdata/identifier-provisioning/pkg/common/logger"
	"github.com/naccdata/identifier-provisioning/pkg/common/models"
	"github.com/naccdata/identifier-provisioning/pkg/enrollment"
	"github.com/naccdata/identifier-provisioning/pkg/identifiers"
	"github.com/naccdata/identifier-provisioning/pkg/transfers"
)

// EventPublisher is what the coordinator needs from the event bus.
// Publication happens only after a decision is durably committed, and a
// publish failure never rolls the decision back.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

const eventSource = "identifier-provisioning"

// Service is the top-level entry point: it classifies each incoming
// record, dispatches to the enrollment or transfer processor, and
// aggregates one outcome per record. A fault on one record never aborts
// the rest of the batch.
type Service struct {
	enrollment *enrollment.Service
	transfers  *transfers.Service
	ids        identifiers.Store
	registry   transfers.Registry
	producer   EventPublisher
	dlq        EventPublisher
}

func NewService(enrollmentSvc *enrollment.Service, transferSvc *transfers.Service, ids identifiers.Store, registry transfers.Registry, producer, dlq EventPublisher) *Service {
	return &Service{
		enrollment: enrollmentSvc,
		transfers:  transferSvc,
		ids:        ids,
		registry:   registry,
		producer:   producer,
		dlq:        dlq,
	}
}

func (s *Service) ProcessBatch(ctx context.Context, batch models.BatchRequest) models.BatchResponse {
	outcomes := make([]models.Outcome, 0, len(batch.Records))
	failed := 0
	for i, record := range batch.Records {
		outcome := s.ProcessRecord(ctx, record)
		outcome.Index = i
		if outcome.Status == models.StatusError {
			failed++
		}
		outcomes = append(outcomes, outcome)
	}
	return models.BatchResponse{
		Outcomes:  outcomes,
		Errors:    failed,
		Timestamp: time.Now().UTC(),
	}
}

func (s *Service) ProcessRecord(ctx context.Context, record models.ProvisionRecord) models.Outcome {
	switch {
	case record.Enrollment != nil && record.Transfer != nil:
		return errorOutcome(models.CodeInvalidRecord, "record is both an enrollment and a transfer")
	case record.Enrollment != nil:
		return s.processEnrollment(ctx, *record.Enrollment)
	case record.Transfer != nil:
		return s.processTransfer(ctx, *record.Transfer)
	default:
		return errorOutcome(models.CodeInvalidRecord, "record is neither an enrollment nor a transfer")
	}
}

func (s *Service) processEnrollment(ctx context.Context, req models.EnrollmentRequest) models.Outcome {
	if req.ADCID <= 0 || req.PTID == "" {
		return errorOutcome(models.CodeInvalidRecord, "enrollment requires adcid and ptid")
	}
	if len(req.Demographics) == 0 {
		return errorOutcome(models.CodeInvalidRecord, "enrollment requires demographics")
	}

	record, err := s.enrollment.Enroll(ctx, req)
	if err != nil {
		return s.enrollmentError(err)
	}

	s.publish(ctx, "identifier.provisioned", map[string]interface{}{
		"naccid": record.NACCID,
		"adcid":  req.ADCID,
		"ptid":   req.PTID,
	})
	return models.Outcome{Status: models.StatusProvisioned, NACCID: record.NACCID}
}

func (s *Service) processTransfer(ctx context.Context, req models.TransferRequest) models.Outcome {
	if req.ReportingADCID <= 0 {
		return errorOutcome(models.CodeInvalidRecord, "transfer requires reporting_adcid")
	}

	result, err := s.transfers.Process(ctx, req)
	if err != nil {
		return s.transferError(err)
	}

	if result.Matched {
		s.publish(ctx, "transfer.matched", map[string]interface{}{
			"naccid":          result.NACCID,
			"reporting_adcid": req.ReportingADCID,
		})
		return models.Outcome{Status: models.StatusMatched, NACCID: result.NACCID, Matched: true}
	}

	s.publish(ctx, "transfer.pending", map[string]interface{}{
		"pending_id":      result.PendingID,
		"reporting_adcid": req.ReportingADCID,
	})
	return models.Outcome{
		Status:    models.StatusPending,
		NACCID:    result.NACCID,
		PendingID: result.PendingID,
		Message:   "awaiting counterpart transfer report",
	}
}

func (s *Service) enrollmentError(err error) models.Outcome {
	var existingID *enrollment.ExistingIdentifierError
	if errors.As(err, &existingID) {
		outcome := errorOutcome(models.CodeExistingIdentifier, err.Error())
		outcome.NACCID = existingID.NACCID
		return outcome
	}

	var existingGUID *enrollment.ExistingGuidError
	if errors.As(err, &existingGUID) {
		outcome := errorOutcome(models.CodeExistingGUID, err.Error())
		outcome.NACCID = existingGUID.NACCID
		return outcome
	}

	var duplicate *enrollment.PossibleDuplicateError
	if errors.As(err, &duplicate) {
		outcome := errorOutcome(models.CodePossibleDuplicate, err.Error())
		outcome.Candidates = duplicate.Candidates
		return outcome
	}

	logger.Log.WithError(err).Error("enrollment processing failed")
	return errorOutcome(models.CodeInternal, err.Error())
}

func (s *Service) transferError(err error) models.Outcome {
	var unknown *transfers.UnknownPriorIdentityError
	if errors.As(err, &unknown) {
		return errorOutcome(models.CodeUnknownPriorIdentity, err.Error())
	}

	var mismatch *transfers.IdentityMismatchError
	if errors.As(err, &mismatch) {
		return errorOutcome(models.CodeIdentityMismatch, err.Error())
	}

	var missing *transfers.MissingInformationError
	if errors.As(err, &missing) {
		outcome := errorOutcome(models.CodeMissingInformation, err.Error())
		outcome.PendingID = missing.PendingID
		return outcome
	}

	var duplicate *identifiers.DuplicateIdentityError
	if errors.As(err, &duplicate) {
		return errorOutcome(models.CodeDuplicateIdentity, err.Error())
	}

	logger.Log.WithError(err).Error("transfer processing failed")
	return errorOutcome(models.CodeInternal, err.Error())
}

// publish emits a follow-up event for an already-committed decision.
// Failures are logged and routed to the DLQ; they never affect the
// outcome reported to the caller.
func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Error("failed to publish provisioning event")
		if s.dlq != nil {
			_ = s.dlq.PublishEvent(ctx, eventType, eventSource, data)
		}
	}
}

func (s *Service) GetIdentifier(ctx context.Context, naccid string) (*identifiers.IdentifierRecord, error) {
	return s.ids.LookupByNACCID(ctx, naccid)
}

func (s *Service) ListIdentifiers(ctx context.Context, adcid int) ([]identifiers.IdentifierRecord, error) {
	return s.ids.ListByCenter(ctx, adcid)
}

func (s *Service) ListPendingTransfers(ctx context.Context, adcid int) ([]transfers.PendingTransfer, error) {
	return s.registry.ListPending(ctx, adcid)
}

func errorOutcome(code, message string) models.Outcome {
	return models.Outcome{Status: models.StatusError, Code: code, Message: message}
}

var _ EventPublisher = (*kafka.Producer)(nil)
