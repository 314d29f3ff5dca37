package transfers

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/naccdata/identifier-provisioning/pkg/common/logger"
	"github.com/naccdata/identifier-provisioning/pkg/common/models"
	"github.com/naccdata/identifier-provisioning/pkg/identifiers"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fixture struct {
	ids      *identifiers.MemoryStore
	registry *MemoryRegistry
	service  *Service
}

func newFixture() *fixture {
	ids := identifiers.NewMemoryStore()
	registry := NewMemoryRegistry()
	return &fixture{
		ids:      ids,
		registry: registry,
		service:  NewService(ids, registry, NewMemoryTx(ids, registry)),
	}
}

func (f *fixture) enroll(t *testing.T, identity models.CenterIdentity) string {
	t.Helper()
	record, err := f.ids.Create(context.Background(), identity, "")
	if err != nil {
		t.Fatalf("failed to seed participant: %v", err)
	}
	return record.NACCID
}

func TestIncomingUnknownPriorIdentity(t *testing.T) {
	f := newFixture()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	next := models.CenterIdentity{ADCID: 2, PTID: "N1"}

	_, err := f.service.Process(context.Background(), models.TransferRequest{
		ReportingADCID: 2,
		OldIdentity:    &old,
		NewIdentity:    &next,
		ClaimedNACCID:  "NACC000001",
	})

	var unknown *UnknownPriorIdentityError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownPriorIdentityError, got %v", err)
	}

	// Error terminals leave no pending state behind.
	pending, listErr := f.registry.ListPending(context.Background(), 0)
	if listErr != nil {
		t.Fatalf("failed to list: %v", listErr)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending records, got %d", len(pending))
	}
}

func TestIncomingIdentityMismatch(t *testing.T) {
	f := newFixture()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	naccid := f.enroll(t, old)

	_, err := f.service.Process(context.Background(), models.TransferRequest{
		ReportingADCID: 2,
		OldIdentity:    &old,
		NewIdentity:    &models.CenterIdentity{ADCID: 2, PTID: "N1"},
		ClaimedNACCID:  "NACC999999",
	})

	var mismatch *IdentityMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected IdentityMismatchError, got %v", err)
	}
	if mismatch.OnFile != naccid || mismatch.Claimed != "NACC999999" {
		t.Fatalf("unexpected mismatch details: %+v", mismatch)
	}
}

func TestIncomingMissingClaimedNACCID(t *testing.T) {
	f := newFixture()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	f.enroll(t, old)

	_, err := f.service.Process(context.Background(), models.TransferRequest{
		ReportingADCID: 2,
		OldIdentity:    &old,
		NewIdentity:    &models.CenterIdentity{ADCID: 2, PTID: "N1"},
	})

	var missing *MissingInformationError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingInformationError, got %v", err)
	}
	if missing.Field != "claimed_naccid" || missing.PendingID == "" {
		t.Fatalf("unexpected error details: %+v", missing)
	}

	record, getErr := f.registry.Get(context.Background(), missing.PendingID)
	if getErr != nil {
		t.Fatalf("pending record not stored: %v", getErr)
	}
	if record.State != StateAwaitingConfirmation {
		t.Fatalf("expected AWAITING_CONFIRMATION, got %s", record.State)
	}
}

func TestOutgoingMissingOldIdentity(t *testing.T) {
	f := newFixture()

	_, err := f.service.Process(context.Background(), models.TransferRequest{
		TransferringOut: true,
		ReportingADCID:  1,
	})

	var missing *MissingInformationError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingInformationError, got %v", err)
	}
	if missing.Field != "old_identity" {
		t.Fatalf("expected old_identity, got %s", missing.Field)
	}

	record, getErr := f.registry.Get(context.Background(), missing.PendingID)
	if getErr != nil {
		t.Fatalf("pending record not stored: %v", getErr)
	}
	if record.State != StateAwaitingIdentification {
		t.Fatalf("expected AWAITING_IDENTIFICATION, got %s", record.State)
	}
}

func TestIncomingMissingNewIdentity(t *testing.T) {
	f := newFixture()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	naccid := f.enroll(t, old)

	_, err := f.service.Process(context.Background(), models.TransferRequest{
		ReportingADCID: 2,
		OldIdentity:    &old,
		ClaimedNACCID:  naccid,
	})

	var missing *MissingInformationError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingInformationError, got %v", err)
	}
	if missing.Field != "new_identity" {
		t.Fatalf("expected new_identity, got %s", missing.Field)
	}
}

func TestTransferMatchOutgoingFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	next := models.CenterIdentity{ADCID: 2, PTID: "N1"}
	naccid := f.enroll(t, old)

	outResult, err := f.service.Process(ctx, models.TransferRequest{
		TransferringOut: true,
		ReportingADCID:  1,
		OldIdentity:     &old,
	})
	if err != nil {
		t.Fatalf("outgoing report failed: %v", err)
	}
	if outResult.Matched || outResult.PendingID == "" {
		t.Fatalf("expected unmatched pending result, got %+v", outResult)
	}

	inResult, err := f.service.Process(ctx, models.TransferRequest{
		ReportingADCID: 2,
		OldIdentity:    &old,
		NewIdentity:    &next,
		ClaimedNACCID:  naccid,
	})
	if err != nil {
		t.Fatalf("incoming report failed: %v", err)
	}
	if !inResult.Matched || inResult.NACCID != naccid {
		t.Fatalf("expected matched result for %s, got %+v", naccid, inResult)
	}

	assertTransferComplete(t, f, outResult.PendingID, naccid, old, next)
}

func TestTransferMatchIncomingFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	next := models.CenterIdentity{ADCID: 2, PTID: "N1"}
	naccid := f.enroll(t, old)

	inResult, err := f.service.Process(ctx, models.TransferRequest{
		ReportingADCID: 2,
		OldIdentity:    &old,
		NewIdentity:    &next,
		ClaimedNACCID:  naccid,
	})
	if err != nil {
		t.Fatalf("incoming report failed: %v", err)
	}
	if inResult.Matched || inResult.NACCID != naccid || inResult.PendingID == "" {
		t.Fatalf("expected unmatched pending result with NACCID, got %+v", inResult)
	}

	outResult, err := f.service.Process(ctx, models.TransferRequest{
		TransferringOut: true,
		ReportingADCID:  1,
		OldIdentity:     &old,
	})
	if err != nil {
		t.Fatalf("outgoing report failed: %v", err)
	}
	if !outResult.Matched || outResult.NACCID != naccid {
		t.Fatalf("expected matched result for %s, got %+v", naccid, outResult)
	}

	assertTransferComplete(t, f, inResult.PendingID, naccid, old, next)
}

// assertTransferComplete verifies the terminal state shared by both
// submission orders: the counterpart record is MATCHED, nothing is left
// pending, and the participant carries the new identity with the old
// one still resolving.
func assertTransferComplete(t *testing.T, f *fixture, counterpartID, naccid string, old, next models.CenterIdentity) {
	t.Helper()
	ctx := context.Background()

	counterpart, err := f.registry.Get(ctx, counterpartID)
	if err != nil {
		t.Fatalf("failed to get counterpart: %v", err)
	}
	if counterpart.State != StateMatched {
		t.Fatalf("expected counterpart MATCHED, got %s", counterpart.State)
	}

	pending, err := f.registry.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no outstanding records, got %d", len(pending))
	}

	record, err := f.ids.LookupByNACCID(ctx, naccid)
	if err != nil {
		t.Fatalf("failed to look up participant: %v", err)
	}
	if record.ActiveIdentity != next {
		t.Fatalf("expected active identity %s, got %s", next, record.ActiveIdentity)
	}

	byOld, err := f.ids.LookupByCenterIdentity(ctx, old)
	if err != nil || byOld.NACCID != naccid {
		t.Fatalf("old identity no longer resolves: %v %v", byOld, err)
	}
}

func TestRepeatedOutgoingAfterMatchStaysPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	next := models.CenterIdentity{ADCID: 2, PTID: "N1"}
	naccid := f.enroll(t, old)

	if _, err := f.service.Process(ctx, models.TransferRequest{
		ReportingADCID: 2,
		OldIdentity:    &old,
		NewIdentity:    &next,
		ClaimedNACCID:  naccid,
	}); err != nil {
		t.Fatalf("incoming report failed: %v", err)
	}
	if _, err := f.service.Process(ctx, models.TransferRequest{
		TransferringOut: true,
		ReportingADCID:  1,
		OldIdentity:     &old,
	}); err != nil {
		t.Fatalf("outgoing report failed: %v", err)
	}

	// A second outgoing report finds no unconsumed counterpart and
	// creates a fresh pending record instead of re-matching.
	result, err := f.service.Process(ctx, models.TransferRequest{
		TransferringOut: true,
		ReportingADCID:  1,
		OldIdentity:     &old,
	})
	if err != nil {
		t.Fatalf("repeat outgoing report failed: %v", err)
	}
	if result.Matched {
		t.Fatalf("expected unmatched result, got %+v", result)
	}
}

// staleRegistry serves one already-consumed record from the match
// lookups, the way a concurrent report that claimed the counterpart
// between find and claim would.
type staleRegistry struct {
	Registry
	stale *PendingTransfer
}

func (r *staleRegistry) FindMatchingOutgoing(ctx context.Context, criteria MatchCriteria) (*PendingTransfer, error) {
	if r.stale != nil {
		record := r.stale
		r.stale = nil
		return record, nil
	}
	return r.Registry.FindMatchingOutgoing(ctx, criteria)
}

func (r *staleRegistry) FindMatchingIncoming(ctx context.Context, criteria MatchCriteria) (*PendingTransfer, error) {
	if r.stale != nil {
		record := r.stale
		r.stale = nil
		return record, nil
	}
	return r.Registry.FindMatchingIncoming(ctx, criteria)
}

func TestIncomingClaimLostFallsBackToPending(t *testing.T) {
	ids := identifiers.NewMemoryStore()
	inner := NewMemoryRegistry()
	ctx := context.Background()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	next := models.CenterIdentity{ADCID: 2, PTID: "N1"}

	enrolled, err := ids.Create(ctx, old, "")
	if err != nil {
		t.Fatalf("failed to seed participant: %v", err)
	}
	naccid := enrolled.NACCID

	consumed := pendingRecord(DirectionOutgoing, StateAwaitingMatch, 1, &old, nil)
	if err := inner.Insert(ctx, consumed); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if won, err := inner.ClaimMatch(ctx, consumed.ID); err != nil || !won {
		t.Fatalf("failed to consume counterpart: %v %v", won, err)
	}

	registry := &staleRegistry{Registry: inner, stale: consumed}
	svc := NewService(ids, registry, NewMemoryTx(ids, registry))

	result, err := svc.Process(ctx, models.TransferRequest{
		ReportingADCID: 2,
		OldIdentity:    &old,
		NewIdentity:    &next,
		ClaimedNACCID:  naccid,
	})
	if err != nil {
		t.Fatalf("losing the claim must not fail the report: %v", err)
	}
	if result.Matched || result.PendingID == "" || result.NACCID != naccid {
		t.Fatalf("expected pending fallback result, got %+v", result)
	}

	record, err := registry.Get(ctx, result.PendingID)
	if err != nil {
		t.Fatalf("fallback pending record not stored: %v", err)
	}
	if record.State != StateAwaitingMatch || record.Direction != DirectionIncoming {
		t.Fatalf("unexpected fallback record: %+v", record)
	}

	// The aborted match transaction must not have linked the identity.
	participant, err := ids.LookupByNACCID(ctx, naccid)
	if err != nil {
		t.Fatalf("failed to look up participant: %v", err)
	}
	if participant.ActiveIdentity != old {
		t.Fatalf("expected identity unchanged, got %s", participant.ActiveIdentity)
	}
}

func TestOutgoingClaimLostFallsBackToPending(t *testing.T) {
	ids := identifiers.NewMemoryStore()
	inner := NewMemoryRegistry()
	ctx := context.Background()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	next := models.CenterIdentity{ADCID: 2, PTID: "N1"}

	enrolled, err := ids.Create(ctx, old, "")
	if err != nil {
		t.Fatalf("failed to seed participant: %v", err)
	}
	naccid := enrolled.NACCID

	consumed := pendingRecord(DirectionIncoming, StateAwaitingMatch, 2, &old, &next)
	consumed.NACCID = &naccid
	if err := inner.Insert(ctx, consumed); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if won, err := inner.ClaimMatch(ctx, consumed.ID); err != nil || !won {
		t.Fatalf("failed to consume counterpart: %v %v", won, err)
	}

	registry := &staleRegistry{Registry: inner, stale: consumed}
	svc := NewService(ids, registry, NewMemoryTx(ids, registry))

	result, err := svc.Process(ctx, models.TransferRequest{
		TransferringOut: true,
		ReportingADCID:  1,
		OldIdentity:     &old,
	})
	if err != nil {
		t.Fatalf("losing the claim must not fail the report: %v", err)
	}
	if result.Matched || result.PendingID == "" {
		t.Fatalf("expected pending fallback result, got %+v", result)
	}

	record, err := registry.Get(ctx, result.PendingID)
	if err != nil {
		t.Fatalf("fallback pending record not stored: %v", err)
	}
	if record.State != StateAwaitingMatch || record.Direction != DirectionOutgoing {
		t.Fatalf("unexpected fallback record: %+v", record)
	}

	participant, err := ids.LookupByNACCID(ctx, naccid)
	if err != nil {
		t.Fatalf("failed to look up participant: %v", err)
	}
	if participant.ActiveIdentity != old {
		t.Fatalf("expected identity unchanged, got %s", participant.ActiveIdentity)
	}
}

func TestCounterpartADCIDConstrainsMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	old := models.CenterIdentity{ADCID: 1, PTID: "P1"}
	next := models.CenterIdentity{ADCID: 2, PTID: "N1"}
	naccid := f.enroll(t, old)

	wrongCounterpart := 5
	outResult, err := f.service.Process(ctx, models.TransferRequest{
		TransferringOut:  true,
		ReportingADCID:   1,
		CounterpartADCID: &wrongCounterpart,
		OldIdentity:      &old,
	})
	if err != nil {
		t.Fatalf("outgoing report failed: %v", err)
	}

	inResult, err := f.service.Process(ctx, models.TransferRequest{
		ReportingADCID: 2,
		OldIdentity:    &old,
		NewIdentity:    &next,
		ClaimedNACCID:  naccid,
	})
	if err != nil {
		t.Fatalf("incoming report failed: %v", err)
	}
	if inResult.Matched {
		t.Fatal("incoming report must not match an outgoing record naming a different counterpart")
	}

	record, err := f.registry.Get(ctx, outResult.PendingID)
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if record.State != StateAwaitingMatch {
		t.Fatalf("expected outgoing record still AWAITING_MATCH, got %s", record.State)
	}
}
