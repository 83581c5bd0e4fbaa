package service

import (
	"errors"
	"testing"
	"time"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/models"
)

func TestHandleSignupOrganicCreatesIdentityWithCode(t *testing.T) {
	env := newServiceTestEnv(t, "signup_organic")

	identity, err := env.signup.HandleSignup(SignupInput{
		Email:       "Organic@Example.com",
		DisplayName: "Organic User",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if identity.Email != "organic@example.com" {
		t.Fatalf("expected lowered email, got %s", identity.Email)
	}
	if len(identity.ReferralCode) != constants.ReferralCodeLength {
		t.Fatalf("expected %d-char referral code, got %q", constants.ReferralCodeLength, identity.ReferralCode)
	}
	if identity.ReferredByID != nil {
		t.Fatalf("expected organic signup unbound, got referrer %v", identity.ReferredByID)
	}
}

func TestHandleSignupBindsReferrerAndAdvancesRecord(t *testing.T) {
	env := newServiceTestEnv(t, "signup_bind")

	referrer := createTestIdentity(t, env.db, "referrer@example.com", "BIND001")

	identity, err := env.signup.HandleSignup(SignupInput{
		Email:   "newbie@example.com",
		URLCode: "BIND001",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if identity.ReferredByID == nil || *identity.ReferredByID != referrer.ID {
		t.Fatalf("expected binding to referrer %d, got %v", referrer.ID, identity.ReferredByID)
	}

	var record models.ReferralRecord
	if err := env.db.Where("referrer_id = ?", referrer.ID).First(&record).Error; err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if record.State != constants.ReferralStateSignedUp {
		t.Fatalf("expected record signed_up, got %s", record.State)
	}
	if record.ReferredID == nil || *record.ReferredID != identity.ID {
		t.Fatalf("expected record linked to identity %d, got %v", identity.ID, record.ReferredID)
	}

	var events []models.ReferralEvent
	if err := env.db.Where("referral_record_id = ?", record.ID).Order("id asc").Find(&events).Error; err != nil {
		t.Fatalf("load events failed: %v", err)
	}
	if len(events) != 2 || events[1].ToState != constants.ReferralStateSignedUp {
		t.Fatalf("expected creation + signup events, got %+v", events)
	}
}

func TestHandleSignupRedeliveryIsNoOp(t *testing.T) {
	env := newServiceTestEnv(t, "signup_redelivery")

	createTestIdentity(t, env.db, "referrer-redeliver@example.com", "REDEL01")

	input := SignupInput{
		Email:   "redelivered@example.com",
		URLCode: "REDEL01",
	}
	first, err := env.signup.HandleSignup(input)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	second, err := env.signup.HandleSignup(input)
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same identity on redelivery, got %d vs %d", first.ID, second.ID)
	}

	var total int64
	if err := env.db.Model(&models.ReferralRecord{}).Count(&total).Error; err != nil {
		t.Fatalf("count records failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected single referral record, got %d", total)
	}
}

func TestHandleSignupBindingNeverOverwritten(t *testing.T) {
	env := newServiceTestEnv(t, "signup_conflict")

	first := createTestIdentity(t, env.db, "first-referrer@example.com", "FIRST01")
	createTestIdentity(t, env.db, "second-referrer@example.com", "SECOND1")

	if _, err := env.signup.HandleSignup(SignupInput{
		Email:   "contested@example.com",
		URLCode: "FIRST01",
	}); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}

	_, err := env.signup.HandleSignup(SignupInput{
		Email:   "contested@example.com",
		URLCode: "SECOND1",
	})
	if !errors.Is(err, ErrBindingConflict) {
		t.Fatalf("expected binding conflict, got %v", err)
	}

	identity, repoErr := env.identityRepo.GetByEmail("contested@example.com")
	if repoErr != nil || identity == nil {
		t.Fatalf("reload identity failed: %v", repoErr)
	}
	if identity.ReferredByID == nil || *identity.ReferredByID != first.ID {
		t.Fatalf("expected binding to stay with %d, got %v", first.ID, identity.ReferredByID)
	}
}

func TestHandleSignupReusesPartnerPrecreatedRecord(t *testing.T) {
	env := newServiceTestEnv(t, "signup_partner_record")

	referrer := createTestIdentity(t, env.db, "partner-referrer@example.com", "PART001")
	record := createTestRecord(t, env.db, referrer.ID, nil, "invited@example.com", constants.ReferralStateReferred, time.Now().AddDate(0, 0, 30))

	identity, err := env.signup.HandleSignup(SignupInput{
		Email:      "invited@example.com",
		ManualCode: "PART001",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	reloaded, err := env.referralRepo.GetByID(record.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload record failed: %v", err)
	}
	if reloaded.State != constants.ReferralStateSignedUp {
		t.Fatalf("expected pre-created record advanced, got %s", reloaded.State)
	}
	if reloaded.ReferredID == nil || *reloaded.ReferredID != identity.ID {
		t.Fatalf("expected record bound to identity %d", identity.ID)
	}

	var total int64
	if err := env.db.Model(&models.ReferralRecord{}).Count(&total).Error; err != nil {
		t.Fatalf("count records failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected no duplicate record, got %d", total)
	}
}

func TestHandleIdentityRemovedClearsDownstream(t *testing.T) {
	env := newServiceTestEnv(t, "signup_offboard")

	referrer := createTestIdentity(t, env.db, "leaving@example.com", "LEAVE01")
	referred := createTestIdentity(t, env.db, "stays@example.com", "STAY001")
	owner := createTestIdentity(t, env.db, "owner@example.com", "OWNER01")

	if _, err := env.identityRepo.BindReferrer(referred.ID, referrer.ID, time.Now()); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	listing := createTestListing(t, env.db, owner.ID, &referrer.ID)

	if err := env.signup.HandleIdentityRemoved(referrer.ID); err != nil {
		t.Fatalf("offboard failed: %v", err)
	}

	reloaded, err := env.identityRepo.GetByID(referred.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload referred failed: %v", err)
	}
	if reloaded.ReferredByID != nil {
		t.Fatalf("expected referrer cleared, got %v", reloaded.ReferredByID)
	}

	reloadedListing, err := env.listingRepo.GetByID(listing.ID)
	if err != nil || reloadedListing == nil {
		t.Fatalf("reload listing failed: %v", err)
	}
	if reloadedListing.DelegateRecipientID != nil {
		t.Fatalf("expected delegation cleared, got %v", reloadedListing.DelegateRecipientID)
	}
}

func TestHandleSignupDisabledIdentityWritesNothing(t *testing.T) {
	env := newServiceTestEnv(t, "signup_disabled")

	createTestIdentity(t, env.db, "dis-referrer@example.com", "DISR001")
	disabled := createTestIdentity(t, env.db, "disabled@example.com", "DISA001")
	if err := env.db.Model(&models.Identity{}).Where("id = ?", disabled.ID).
		Update("status", constants.IdentityStatusDisabled).Error; err != nil {
		t.Fatalf("disable identity failed: %v", err)
	}

	_, err := env.signup.HandleSignup(SignupInput{
		Email:   "disabled@example.com",
		URLCode: "DISR001",
	})
	if !errors.Is(err, ErrIdentityDisabled) {
		t.Fatalf("expected disabled identity error, got %v", err)
	}

	// 事务整体回滚：绑定与推荐记录均未写入。
	reloaded, repoErr := env.identityRepo.GetByID(disabled.ID)
	if repoErr != nil || reloaded == nil {
		t.Fatalf("reload identity failed: %v", repoErr)
	}
	if reloaded.ReferredByID != nil {
		t.Fatalf("expected no binding, got %v", reloaded.ReferredByID)
	}
	var total int64
	if err := env.db.Model(&models.ReferralRecord{}).Count(&total).Error; err != nil {
		t.Fatalf("count records failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no referral records, got %d", total)
	}
}
