package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/models"
)

func TestHandleLinkCreatesRecordAndCookie(t *testing.T) {
	env := newServiceTestEnv(t, "link_create")

	referrer := createTestIdentity(t, env.db, "link-referrer@example.com", "LINK001")

	result, err := env.referral.HandleLink(context.Background(), "LINK001", "", "10.0.0.1")
	if err != nil {
		t.Fatalf("handle link failed: %v", err)
	}
	if result.Record.ReferrerID != referrer.ID {
		t.Fatalf("expected record for referrer %d, got %d", referrer.ID, result.Record.ReferrerID)
	}
	if result.Record.State != constants.ReferralStateReferred {
		t.Fatalf("expected referred state, got %s", result.Record.State)
	}

	ref, ok := env.signature.DecodeCookie(result.CookieValue, "10.0.0.1")
	if !ok || ref != result.Record.Ref {
		t.Fatalf("expected cookie to carry record ref %s, got %s ok=%v", result.Record.Ref, ref, ok)
	}
}

func TestHandleLinkReusesOpenRecordOnRepeatClick(t *testing.T) {
	env := newServiceTestEnv(t, "link_reuse")

	createTestIdentity(t, env.db, "repeat-referrer@example.com", "REPEAT1")

	first, err := env.referral.HandleLink(context.Background(), "REPEAT1", "", "10.0.0.1")
	if err != nil {
		t.Fatalf("first click failed: %v", err)
	}
	second, err := env.referral.HandleLink(context.Background(), "REPEAT1", first.CookieValue, "10.0.0.1")
	if err != nil {
		t.Fatalf("second click failed: %v", err)
	}
	if second.Record.ID != first.Record.ID {
		t.Fatalf("expected record reuse, got %d then %d", first.Record.ID, second.Record.ID)
	}

	var total int64
	if err := env.db.Model(&models.ReferralRecord{}).Count(&total).Error; err != nil {
		t.Fatalf("count records failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected single record, got %d", total)
	}
}

func TestHandleLinkRejectsUnknownCode(t *testing.T) {
	env := newServiceTestEnv(t, "link_unknown")

	_, err := env.referral.HandleLink(context.Background(), "NOSUCH1", "", "10.0.0.1")
	if !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected invalid code error, got %v", err)
	}
}

func TestCreatePartnerRejectsSelfAndDuplicates(t *testing.T) {
	env := newServiceTestEnv(t, "partner_create")

	referrer := createTestIdentity(t, env.db, "partner@example.com", "PARTNR1")

	if _, err := env.referral.CreatePartner(CreatePartnerInput{
		ReferralCode:  "PARTNR1",
		ReferredEmail: "partner@example.com",
	}); !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("expected self referral error, got %v", err)
	}

	record, err := env.referral.CreatePartner(CreatePartnerInput{
		ReferralCode:  "PARTNR1",
		ReferredEmail: "Lead@Example.com",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if record.ReferredEmail != "lead@example.com" {
		t.Fatalf("expected lowered email capture, got %s", record.ReferredEmail)
	}
	if record.Method != constants.AttributionMethodAPI {
		t.Fatalf("expected api method, got %s", record.Method)
	}
	if record.ReferrerID != referrer.ID {
		t.Fatalf("expected referrer %d, got %d", referrer.ID, record.ReferrerID)
	}

	if _, err := env.referral.CreatePartner(CreatePartnerInput{
		ReferralCode:  "PARTNR1",
		ReferredEmail: "lead@example.com",
	}); !errors.Is(err, ErrReferralExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestMarkConvertedIdempotentAndTerminalGuard(t *testing.T) {
	env := newServiceTestEnv(t, "convert_guard")

	referrer := createTestIdentity(t, env.db, "convert-referrer@example.com", "CONV001")
	referred := createTestIdentity(t, env.db, "convert-referred@example.com", "CONV002")
	record := createTestRecord(t, env.db, referrer.ID, &referred.ID, referred.Email, constants.ReferralStateSignedUp, time.Now().AddDate(0, 0, 30))

	now := time.Now()
	if err := env.referral.MarkConverted(nil, record.ID, now); err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	// 重复转化为无操作。
	if err := env.referral.MarkConverted(nil, record.ID, now); err != nil {
		t.Fatalf("repeat convert should be no-op, got %v", err)
	}

	reloaded, err := env.referralRepo.GetByID(record.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.State != constants.ReferralStateConverted || reloaded.ConvertedAt == nil {
		t.Fatalf("expected converted record, got %+v", reloaded)
	}

	expired := createTestRecord(t, env.db, referrer.ID, nil, "expired@example.com", constants.ReferralStateExpired, time.Now().AddDate(0, 0, -1))
	if err := env.referral.MarkConverted(nil, expired.ID, now); !errors.Is(err, ErrRecordTerminal) {
		t.Fatalf("expected terminal guard, got %v", err)
	}
}

func TestStateCountsGroupsByState(t *testing.T) {
	env := newServiceTestEnv(t, "state_counts")

	referrer := createTestIdentity(t, env.db, "counts-referrer@example.com", "COUNT01")
	createTestRecord(t, env.db, referrer.ID, nil, "a@example.com", constants.ReferralStateReferred, time.Now().AddDate(0, 0, 30))
	createTestRecord(t, env.db, referrer.ID, nil, "b@example.com", constants.ReferralStateConverted, time.Now().AddDate(0, 0, 30))
	createTestRecord(t, env.db, referrer.ID, nil, "c@example.com", constants.ReferralStateConverted, time.Now().AddDate(0, 0, 30))

	counts, err := env.referral.StateCounts(referrer.ID, 0)
	if err != nil {
		t.Fatalf("state counts failed: %v", err)
	}
	if counts[constants.ReferralStateReferred] != 1 || counts[constants.ReferralStateConverted] != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if counts[constants.ReferralStateExpired] != 0 {
		t.Fatalf("expected zero expired, got %d", counts[constants.ReferralStateExpired])
	}
}

func TestRebuildProjectionRepairsDriftedState(t *testing.T) {
	env := newServiceTestEnv(t, "projection_rebuild")

	referrer := createTestIdentity(t, env.db, "projection-referrer@example.com", "PROJ001")
	record := createTestRecord(t, env.db, referrer.ID, nil, "proj@example.com", constants.ReferralStateReferred, time.Now().AddDate(0, 0, 30))

	events := []models.ReferralEvent{
		{ReferralRecordID: record.ID, FromState: "", ToState: constants.ReferralStateReferred, CreatedAt: time.Now()},
		{ReferralRecordID: record.ID, FromState: constants.ReferralStateReferred, ToState: constants.ReferralStateSignedUp, CreatedAt: time.Now()},
		{ReferralRecordID: record.ID, FromState: constants.ReferralStateSignedUp, ToState: constants.ReferralStateConverted, CreatedAt: time.Now()},
	}
	for i := range events {
		if err := env.referralRepo.AppendEvent(&events[i]); err != nil {
			t.Fatalf("append event failed: %v", err)
		}
	}

	state, err := env.referral.RebuildProjection(record.ID)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if state != constants.ReferralStateConverted {
		t.Fatalf("expected replayed state converted, got %s", state)
	}

	reloaded, err := env.referralRepo.GetByID(record.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.State != constants.ReferralStateConverted {
		t.Fatalf("expected stored state repaired, got %s", reloaded.State)
	}
}

func TestOpenRecordGuardIndexBlocksSecondOpenRecord(t *testing.T) {
	env := newServiceTestEnv(t, "guard_index")

	referrer := createTestIdentity(t, env.db, "guard-referrer@example.com", "GUARD01")
	referred := createTestIdentity(t, env.db, "guard-referred@example.com", "GUARD02")
	createTestRecord(t, env.db, referrer.ID, &referred.ID, referred.Email, constants.ReferralStateSignedUp, time.Now().AddDate(0, 0, 30))

	dup := models.ReferralRecord{
		Ref:        "dup-ref",
		ReferrerID: referrer.ID,
		ReferredID: &referred.ID,
		Method:     constants.AttributionMethodURL,
		State:      constants.ReferralStateReferred,
		ExpiresAt:  time.Now().AddDate(0, 0, 30),
	}
	if err := env.db.Create(&dup).Error; err == nil {
		t.Fatal("expected second open record for same referred identity to be rejected")
	}
}
