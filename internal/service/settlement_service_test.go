package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/payout"
)

type failingTransferrer struct {
	calls int
}

func (f *failingTransferrer) Transfer(ctx context.Context, recipientID uint, amount models.Money, currency, idempotencyKey string) (string, error) {
	f.calls++
	return "", errors.New("transfer channel unavailable")
}

type recordingTransferrer struct {
	tokens    []string
	failFirst bool
}

func (r *recordingTransferrer) Transfer(ctx context.Context, recipientID uint, amount models.Money, currency, idempotencyKey string) (string, error) {
	r.tokens = append(r.tokens, idempotencyKey)
	if r.failFirst && len(r.tokens) == 1 {
		return "", errors.New("transfer channel unavailable")
	}
	return "ref-" + idempotencyKey, nil
}

func newSettlementTest(t *testing.T, name string, transferrer payout.Transferrer) (*SettlementService, *serviceTestEnv) {
	t.Helper()

	env := newServiceTestEnv(t, name)
	if transferrer == nil {
		transferrer = payout.NewLogTransferrer()
	}
	svc := NewSettlementService(testReferralConfig(), env.referralRepo, env.commissionRepo, env.payoutRepo, transferrer, env.referral)
	return svc, env
}

func TestExpireDueReferralsSweep(t *testing.T) {
	svc, env := newSettlementTest(t, "settle_expire", nil)

	referrer := createTestIdentity(t, env.db, "exp-referrer@example.com", "SEXP001")
	overdue := createTestRecord(t, env.db, referrer.ID, nil, "overdue@example.com", constants.ReferralStateSignedUp, time.Now().AddDate(0, 0, -1))
	fresh := createTestRecord(t, env.db, referrer.ID, nil, "fresh@example.com", constants.ReferralStateReferred, time.Now().AddDate(0, 0, 30))
	converted := createTestRecord(t, env.db, referrer.ID, nil, "done@example.com", constants.ReferralStateConverted, time.Now().AddDate(0, 0, -1))

	count, err := svc.ExpireDueReferrals(time.Now())
	if err != nil {
		t.Fatalf("expiry sweep failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expiry, got %d", count)
	}

	reloaded, err := env.referralRepo.GetByID(overdue.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload overdue failed: %v", err)
	}
	if reloaded.State != constants.ReferralStateExpired || reloaded.ExpiredAt == nil {
		t.Fatalf("expected overdue record expired, got %+v", reloaded)
	}

	for _, id := range []uint{fresh.ID, converted.ID} {
		record, err := env.referralRepo.GetByID(id)
		if err != nil || record == nil {
			t.Fatalf("reload record %d failed: %v", id, err)
		}
		if record.State == constants.ReferralStateExpired && id == fresh.ID {
			t.Fatalf("fresh record must not expire")
		}
	}

	// 重复执行无额外变化。
	again, err := svc.ExpireDueReferrals(time.Now())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected idempotent sweep, got %d", again)
	}
}

func TestReleaseClearedCommissionsSweep(t *testing.T) {
	svc, env := newSettlementTest(t, "settle_release", nil)

	payer := createTestIdentity(t, env.db, "rel-payer@example.com", "SREL001")
	recipient := createTestIdentity(t, env.db, "rel-recipient@example.com", "SREL002")

	past := time.Now().AddDate(0, 0, -1)
	future := time.Now().AddDate(0, 0, 7)
	due := createTestCommission(t, env.db, "txn-rel-due", payer.ID, recipient.ID, "5.00", constants.CommissionStatePending, &past)
	notDue := createTestCommission(t, env.db, "txn-rel-early", payer.ID, recipient.ID, "5.00", constants.CommissionStatePending, &future)

	released, err := svc.ReleaseClearedCommissions(time.Now())
	if err != nil {
		t.Fatalf("release sweep failed: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 release, got %d", released)
	}

	reloadedDue, err := env.commissionRepo.GetByID(due.ID)
	if err != nil || reloadedDue == nil {
		t.Fatalf("reload due failed: %v", err)
	}
	if reloadedDue.State != constants.CommissionStateAvailable || reloadedDue.AvailableAt == nil {
		t.Fatalf("expected due entry available, got %+v", reloadedDue)
	}

	reloadedEarly, err := env.commissionRepo.GetByID(notDue.ID)
	if err != nil || reloadedEarly == nil {
		t.Fatalf("reload early failed: %v", err)
	}
	if reloadedEarly.State != constants.CommissionStatePending {
		t.Fatalf("expected early entry still pending, got %s", reloadedEarly.State)
	}
}

func TestRunPayoutsRespectsThreshold(t *testing.T) {
	svc, env := newSettlementTest(t, "settle_threshold", nil)

	payer := createTestIdentity(t, env.db, "thr-payer@example.com", "STHR001")
	below := createTestIdentity(t, env.db, "thr-below@example.com", "STHR002")
	createTestCommission(t, env.db, "txn-thr-1", payer.ID, below.ID, "24.99", constants.CommissionStateAvailable, nil)

	paid, err := svc.RunPayouts(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("payout sweep failed: %v", err)
	}
	if paid != 0 {
		t.Fatalf("expected below-threshold recipient skipped, got %d payouts", paid)
	}

	var batches int64
	if err := env.db.Model(&models.PayoutBatch{}).Count(&batches).Error; err != nil {
		t.Fatalf("count batches failed: %v", err)
	}
	if batches != 0 {
		t.Fatalf("expected no batches, got %d", batches)
	}
}

func TestRunPayoutsPaysOverThreshold(t *testing.T) {
	svc, env := newSettlementTest(t, "settle_pay", nil)

	payer := createTestIdentity(t, env.db, "pay-payer@example.com", "SPAY001")
	recipient := createTestIdentity(t, env.db, "pay-recipient@example.com", "SPAY002")
	first := createTestCommission(t, env.db, "txn-pay-1", payer.ID, recipient.ID, "15.00", constants.CommissionStateAvailable, nil)
	second := createTestCommission(t, env.db, "txn-pay-2", payer.ID, recipient.ID, "12.50", constants.CommissionStateAvailable, nil)

	paid, err := svc.RunPayouts(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("payout sweep failed: %v", err)
	}
	if paid != 1 {
		t.Fatalf("expected 1 payout, got %d", paid)
	}

	var batch models.PayoutBatch
	if err := env.db.First(&batch).Error; err != nil {
		t.Fatalf("load batch failed: %v", err)
	}
	if batch.State != constants.PayoutBatchStatePaid {
		t.Fatalf("expected paid batch, got %s", batch.State)
	}
	if batch.TotalAmount.String() != "27.50" || batch.EntryCount != 2 {
		t.Fatalf("unexpected batch totals: %+v", batch)
	}
	if batch.IdempotencyKey != payoutIdempotencyKey(recipient.ID, []uint{second.ID, first.ID}) {
		t.Fatal("expected idempotency key independent of entry order")
	}
	if batch.TransferRef == "" {
		t.Fatal("expected transfer reference recorded")
	}

	for _, id := range []uint{first.ID, second.ID} {
		entry, err := env.commissionRepo.GetByID(id)
		if err != nil || entry == nil {
			t.Fatalf("reload entry %d failed: %v", id, err)
		}
		if entry.State != constants.CommissionStatePaid || entry.PayoutBatchID == nil {
			t.Fatalf("expected entry paid in batch, got %+v", entry)
		}
	}

	// 再次执行不重复打款。
	again, err := svc.RunPayouts(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected no repeat payout, got %d", again)
	}
}

func TestRunPayoutsTransferTokenContentDerived(t *testing.T) {
	transferrer := &recordingTransferrer{failFirst: true}
	svc, env := newSettlementTest(t, "settle_token", transferrer)

	payer := createTestIdentity(t, env.db, "tok-payer@example.com", "STOK001")
	recipient := createTestIdentity(t, env.db, "tok-recipient@example.com", "STOK002")
	first := createTestCommission(t, env.db, "txn-tok-1", payer.ID, recipient.ID, "30.00", constants.CommissionStateAvailable, nil)
	second := createTestCommission(t, env.db, "txn-tok-2", payer.ID, recipient.ID, "10.00", constants.CommissionStateAvailable, nil)

	// 第一轮转账失败，第二轮复用批次重试成功。
	if _, err := svc.RunPayouts(context.Background(), time.Now()); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	paid, err := svc.RunPayouts(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("retry sweep failed: %v", err)
	}
	if paid != 1 {
		t.Fatalf("expected retry payout, got %d", paid)
	}

	want := payoutIdempotencyKey(recipient.ID, []uint{first.ID, second.ID})
	if len(transferrer.tokens) != 2 {
		t.Fatalf("expected 2 transfer attempts, got %d", len(transferrer.tokens))
	}
	if transferrer.tokens[0] != want || transferrer.tokens[1] != want {
		t.Fatalf("expected content-derived token on both attempts, got %v", transferrer.tokens)
	}

	var batch models.PayoutBatch
	if err := env.db.First(&batch).Error; err != nil {
		t.Fatalf("load batch failed: %v", err)
	}
	if batch.BatchNo == want {
		t.Fatal("batch no must stay distinct from the transfer token")
	}
}

func TestRunPayoutsFailureKeepsEntriesAvailable(t *testing.T) {
	transferrer := &failingTransferrer{}
	svc, env := newSettlementTest(t, "settle_fail", transferrer)

	payer := createTestIdentity(t, env.db, "fail-payer@example.com", "SFAI001")
	recipient := createTestIdentity(t, env.db, "fail-recipient@example.com", "SFAI002")
	entry := createTestCommission(t, env.db, "txn-fail-1", payer.ID, recipient.ID, "30.00", constants.CommissionStateAvailable, nil)

	paid, err := svc.RunPayouts(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("payout sweep failed: %v", err)
	}
	if paid != 0 {
		t.Fatalf("expected no successful payout, got %d", paid)
	}

	var batch models.PayoutBatch
	if err := env.db.First(&batch).Error; err != nil {
		t.Fatalf("load batch failed: %v", err)
	}
	if batch.State != constants.PayoutBatchStateFailed || batch.FailureCount != 1 || batch.LastError == "" {
		t.Fatalf("expected failed batch with error, got %+v", batch)
	}

	reloaded, err := env.commissionRepo.GetByID(entry.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload entry failed: %v", err)
	}
	if reloaded.State != constants.CommissionStateAvailable {
		t.Fatalf("expected entry still available, got %s", reloaded.State)
	}

	// 下一轮按同一幂等键复用既有批次重试。
	if _, err := svc.RunPayouts(context.Background(), time.Now()); err != nil {
		t.Fatalf("retry sweep failed: %v", err)
	}
	var batches int64
	if err := env.db.Model(&models.PayoutBatch{}).Count(&batches).Error; err != nil {
		t.Fatalf("count batches failed: %v", err)
	}
	if batches != 1 {
		t.Fatalf("expected batch reuse on retry, got %d batches", batches)
	}
	if err := env.db.First(&batch).Error; err != nil {
		t.Fatalf("reload batch failed: %v", err)
	}
	if batch.FailureCount != 2 {
		t.Fatalf("expected failure count 2 after retry, got %d", batch.FailureCount)
	}
	if transferrer.calls != 2 {
		t.Fatalf("expected 2 transfer attempts, got %d", transferrer.calls)
	}
}
