package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/payout"
	"github.com/referral-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func thresholdDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// SettlementService 结算调度：推荐过期扫描、清算期扫描、打款扫描。
// 三个扫描均幂等，可重复执行。
type SettlementService struct {
	cfg            config.ReferralConfig
	referralRepo   repository.ReferralRepository
	commissionRepo repository.CommissionRepository
	payoutRepo     repository.PayoutRepository
	transferrer    payout.Transferrer
	referral       *ReferralService
}

// NewSettlementService 创建结算服务
func NewSettlementService(
	cfg config.ReferralConfig,
	referralRepo repository.ReferralRepository,
	commissionRepo repository.CommissionRepository,
	payoutRepo repository.PayoutRepository,
	transferrer payout.Transferrer,
	referral *ReferralService,
) *SettlementService {
	return &SettlementService{
		cfg:            cfg,
		referralRepo:   referralRepo,
		commissionRepo: commissionRepo,
		payoutRepo:     payoutRepo,
		transferrer:    transferrer,
		referral:       referral,
	}
}

// ExpireDueReferrals 将超过归因窗口仍未转化的推荐记录流转为 expired。
func (s *SettlementService) ExpireDueReferrals(now time.Time) (int, error) {
	expired := 0
	err := s.referralRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.referralRepo.WithTx(tx)
		due, err := repo.ListDueForExpiry(now, 500)
		if err != nil {
			return err
		}
		for _, record := range due {
			moved, err := s.referral.transition(tx, record.ID,
				[]string{record.State},
				constants.ReferralStateExpired,
				map[string]interface{}{
					"expired_at": now,
					"updated_at": now,
				},
				ActorSweep, "attribution window elapsed", now)
			if err != nil {
				return err
			}
			if moved {
				expired++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		logger.Infow("settlement_referrals_expired", "count", expired)
	}
	return expired, nil
}

// ReleaseClearedCommissions 清算期已到的 pending 佣金批量转为 available。
func (s *SettlementService) ReleaseClearedCommissions(now time.Time) (int64, error) {
	released, err := s.commissionRepo.ReleaseCleared(now)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		logger.Infow("settlement_commissions_released", "count", released)
	}
	return released, nil
}

// RunPayouts 打款扫描：按受益人汇总 available 佣金，达到门槛的生成批次并转账。
func (s *SettlementService) RunPayouts(ctx context.Context, now time.Time) (int, error) {
	threshold := models.NewMoneyFromDecimal(thresholdDecimal(s.cfg.PayoutThreshold))
	recipients, err := s.commissionRepo.ListRecipientsOverThreshold(threshold)
	if err != nil {
		return 0, err
	}

	paid := 0
	for _, candidate := range recipients {
		select {
		case <-ctx.Done():
			return paid, ctx.Err()
		default:
		}
		ok, err := s.payoutRecipient(ctx, candidate.RecipientID, now)
		if err != nil {
			logger.Errorw("settlement_payout_failed",
				"recipient_id", candidate.RecipientID,
				"error", err,
			)
			continue
		}
		if ok {
			paid++
		}
	}
	return paid, nil
}

// payoutRecipient 为单个受益人执行一次打款。
// 转账失败时批次标记 failed、条目保持 available，下一轮按同一幂等键复用批次重试。
func (s *SettlementService) payoutRecipient(ctx context.Context, recipientID uint, now time.Time) (bool, error) {
	succeeded := false
	err := s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		commissionRepo := s.commissionRepo.WithTx(tx)
		payoutRepo := s.payoutRepo.WithTx(tx)

		entries, err := commissionRepo.ListAvailableByRecipientForUpdate(recipientID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		total := models.Money{}
		currency := constants.SiteCurrencyDefault
		entryIDs := make([]uint, 0, len(entries))
		for _, entry := range entries {
			total = total.Add(entry.CommissionAmount)
			entryIDs = append(entryIDs, entry.ID)
			currency = entry.Currency
		}
		if total.Decimal.LessThan(thresholdDecimal(s.cfg.PayoutThreshold)) {
			return nil
		}

		key := payoutIdempotencyKey(recipientID, entryIDs)
		batch, err := payoutRepo.GetByIdempotencyKey(key)
		if err != nil {
			return err
		}
		if batch != nil && (batch.State == constants.PayoutBatchStatePaid || batch.State == constants.PayoutBatchStateSubmitted) {
			// 同一内容的批次已经走过转账，不重复付款。
			return nil
		}
		if batch == nil {
			batch = &models.PayoutBatch{
				BatchNo:        generateBatchNo(),
				RecipientID:    recipientID,
				TotalAmount:    total,
				Currency:       currency,
				EntryCount:     len(entries),
				State:          constants.PayoutBatchStateCreated,
				IdempotencyKey: key,
			}
			if err := payoutRepo.Create(batch); err != nil {
				if isUniqueViolation(err) {
					return nil
				}
				return err
			}
		}

		// 转账凭据用内容派生的幂等键而非批次号：批次行随事务回滚后重建时
		// 批次号会换新，幂等键不变，通道侧才能识别重试。
		transferRef, transferErr := s.transferrer.Transfer(ctx, recipientID, total, currency, batch.IdempotencyKey)
		if transferErr != nil {
			batch.State = constants.PayoutBatchStateFailed
			batch.FailureCount++
			batch.LastError = transferErr.Error()
			batch.UpdatedAt = now
			if err := payoutRepo.Update(batch); err != nil {
				return err
			}
			if s.cfg.PayoutFailureAlertCount > 0 && batch.FailureCount >= s.cfg.PayoutFailureAlertCount {
				logger.Errorw("settlement_payout_alert",
					"batch_no", batch.BatchNo,
					"recipient_id", recipientID,
					"failure_count", batch.FailureCount,
					"last_error", batch.LastError,
				)
			} else {
				logger.Warnw("settlement_payout_transfer_failed",
					"batch_no", batch.BatchNo,
					"recipient_id", recipientID,
					"failure_count", batch.FailureCount,
					"error", transferErr,
				)
			}
			return nil
		}

		batch.State = constants.PayoutBatchStatePaid
		batch.TransferRef = transferRef
		batch.SubmittedAt = &now
		batch.PaidAt = &now
		batch.UpdatedAt = now
		if err := payoutRepo.Update(batch); err != nil {
			return err
		}
		if _, err := commissionRepo.AssignBatch(entryIDs, batch.ID, constants.CommissionStatePaid, &now); err != nil {
			return err
		}

		succeeded = true
		logger.Infow("settlement_payout_completed",
			"batch_no", batch.BatchNo,
			"recipient_id", recipientID,
			"total", total.String(),
			"entry_count", len(entryIDs),
			"transfer_ref", transferRef,
		)
		return nil
	})
	return succeeded, err
}

// payoutIdempotencyKey 批次幂等键：受益人与成员条目ID排序串接后的 SHA-256。
func payoutIdempotencyKey(recipientID uint, entryIDs []uint) string {
	sorted := make([]uint, len(entryIDs))
	copy(sorted, entryIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var builder strings.Builder
	fmt.Fprintf(&builder, "%d:", recipientID)
	for i, id := range sorted {
		if i > 0 {
			builder.WriteByte(',')
		}
		fmt.Fprintf(&builder, "%d", id)
	}
	sum := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(sum[:])
}

// ListBatchesForRecipient 查询受益人的结算批次
func (s *SettlementService) ListBatchesForRecipient(recipientID uint, page, pageSize int) ([]models.PayoutBatch, int64, error) {
	return s.payoutRepo.List(repository.PayoutBatchListFilter{
		Page:        page,
		PageSize:    pageSize,
		RecipientID: recipientID,
	})
}
