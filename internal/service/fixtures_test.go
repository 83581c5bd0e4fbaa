package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Identity{},
		&models.Listing{},
		&models.ReferralRecord{},
		&models.ReferralEvent{},
		&models.CommissionEntry{},
		&models.PayoutBatch{},
		&models.APIKey{},
		&models.SignatureAuditLog{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	if err := models.EnsureGuardIndexes(db); err != nil {
		t.Fatalf("guard indexes failed: %v", err)
	}
	return db
}

func testReferralConfig() config.ReferralConfig {
	return config.ReferralConfig{
		SigningSecret:           "test-signing-secret",
		CookieName:              constants.ReferralCookieName,
		CookieTTLDays:           90,
		ExpiryDays:              90,
		ClearingDays:            14,
		CommissionPercent:       10,
		PlatformFeePercent:      15,
		PayoutThreshold:         25,
		PayoutIntervalHours:     168,
		PayoutFailureAlertCount: 3,
		DefaultRedirect:         "/",
	}
}

type serviceTestEnv struct {
	db             *gorm.DB
	identityRepo   repository.IdentityRepository
	referralRepo   repository.ReferralRepository
	listingRepo    repository.ListingRepository
	commissionRepo repository.CommissionRepository
	payoutRepo     repository.PayoutRepository
	auditRepo      repository.SignatureAuditRepository

	signature   *SignatureService
	attribution *AttributionService
	referral    *ReferralService
	signup      *SignupService
	ledger      *LedgerService
}

func newServiceTestEnv(t *testing.T, name string) *serviceTestEnv {
	t.Helper()

	db := openServiceTestDB(t, name)
	cfg := testReferralConfig()

	env := &serviceTestEnv{
		db:             db,
		identityRepo:   repository.NewIdentityRepository(db),
		referralRepo:   repository.NewReferralRepository(db),
		listingRepo:    repository.NewListingRepository(db),
		commissionRepo: repository.NewCommissionRepository(db),
		payoutRepo:     repository.NewPayoutRepository(db),
		auditRepo:      repository.NewSignatureAuditRepository(db),
	}
	env.signature = NewSignatureService(cfg.SigningSecret, env.auditRepo)
	env.attribution = NewAttributionService(env.identityRepo, env.referralRepo, env.signature)
	env.referral = NewReferralService(cfg, env.identityRepo, env.referralRepo, env.signature)
	env.signup = NewSignupService(cfg, env.identityRepo, env.referralRepo, env.listingRepo, env.attribution, env.referral)
	env.ledger = NewLedgerService(cfg, env.identityRepo, env.referralRepo, env.listingRepo, env.commissionRepo, env.referral)
	return env
}

func createTestIdentity(t *testing.T, db *gorm.DB, email, code string) models.Identity {
	t.Helper()

	row := models.Identity{
		Email:        email,
		DisplayName:  "tester",
		ReferralCode: code,
		Roles:        models.StringArray{constants.IdentityRoleClient},
		Status:       constants.IdentityStatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create identity failed: %v", err)
	}
	return row
}

func createTestListing(t *testing.T, db *gorm.DB, ownerID uint, delegateID *uint) models.Listing {
	t.Helper()

	row := models.Listing{
		OwnerID:             ownerID,
		Title:               "maths tuition",
		DelegateRecipientID: delegateID,
		IsActive:            true,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	return row
}

func createTestRecord(t *testing.T, db *gorm.DB, referrerID uint, referredID *uint, email, state string, expiresAt time.Time) models.ReferralRecord {
	t.Helper()

	row := models.ReferralRecord{
		Ref:           fmt.Sprintf("ref-%d-%d", referrerID, time.Now().UnixNano()),
		ReferrerID:    referrerID,
		ReferredID:    referredID,
		ReferredEmail: email,
		Method:        constants.AttributionMethodURL,
		State:         state,
		ExpiresAt:     expiresAt,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create referral record failed: %v", err)
	}
	return row
}

func createTestCommission(t *testing.T, db *gorm.DB, txID string, payerID, recipientID uint, amount string, state string, clearsAt *time.Time) models.CommissionEntry {
	t.Helper()

	row := models.CommissionEntry{
		TransactionID:    txID,
		PayerID:          payerID,
		RecipientID:      recipientID,
		GrossAmount:      mustMoney(t, amount),
		NetAmount:        mustMoney(t, amount),
		CommissionAmount: mustMoney(t, amount),
		Currency:         constants.SiteCurrencyDefault,
		State:            state,
		ClearsAt:         clearsAt,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create commission entry failed: %v", err)
	}
	return row
}

func mustMoney(t *testing.T, value string) models.Money {
	t.Helper()

	var m models.Money
	if err := m.UnmarshalJSON([]byte(fmt.Sprintf("%q", value))); err != nil {
		t.Fatalf("parse money %q failed: %v", value, err)
	}
	return m
}
