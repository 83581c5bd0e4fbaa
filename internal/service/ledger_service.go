package service

import (
	"errors"
	"strings"
	"time"

	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService 佣金台账：结算交易入账与冲正。
type LedgerService struct {
	cfg            config.ReferralConfig
	identityRepo   repository.IdentityRepository
	referralRepo   repository.ReferralRepository
	listingRepo    repository.ListingRepository
	commissionRepo repository.CommissionRepository
	referral       *ReferralService
}

// NewLedgerService 创建佣金台账服务
func NewLedgerService(
	cfg config.ReferralConfig,
	identityRepo repository.IdentityRepository,
	referralRepo repository.ReferralRepository,
	listingRepo repository.ListingRepository,
	commissionRepo repository.CommissionRepository,
	referral *ReferralService,
) *LedgerService {
	return &LedgerService{
		cfg:            cfg,
		identityRepo:   identityRepo,
		referralRepo:   referralRepo,
		listingRepo:    listingRepo,
		commissionRepo: commissionRepo,
		referral:       referral,
	}
}

// TransactionInput 支付方结算回调载荷
type TransactionInput struct {
	TransactionID string
	PayerID       uint
	ListingID     *uint
	GrossAmount   models.Money
	Currency      string
	OccurredAt    time.Time
}

// RecordSettled 结算交易入账。同一交易号重复投递返回既有条目；
// 无可归属受益人的交易不产生条目，返回 (nil, nil)。
func (s *LedgerService) RecordSettled(input TransactionInput) (*models.CommissionEntry, error) {
	txID := strings.TrimSpace(input.TransactionID)
	if txID == "" || input.PayerID == 0 || !input.GrossAmount.IsPositive() {
		return nil, ErrTransactionInvalid
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = constants.SiteCurrencyDefault
	}

	if existing, err := s.commissionRepo.GetByTransactionID(txID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	payer, err := s.identityRepo.GetByID(input.PayerID)
	if err != nil {
		return nil, err
	}
	if payer == nil {
		return nil, ErrNotFound
	}

	var entry *models.CommissionEntry
	err = s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		commissionRepo := s.commissionRepo.WithTx(tx)

		// 并发重复投递在锁内再次判定。
		if existing, err := commissionRepo.GetByTransactionIDForUpdate(txID); err != nil {
			return err
		} else if existing != nil {
			entry = existing
			return nil
		}

		recipientID, listingID, err := s.resolveRecipient(tx, payer, input.ListingID)
		if err != nil {
			return err
		}

		referralRecordID, err := s.convertPayerReferral(tx, payer.ID, occurredAt)
		if err != nil {
			return err
		}

		if recipientID == 0 {
			logger.Infow("ledger_no_recipient",
				"transaction_id", txID,
				"payer_id", payer.ID,
			)
			return nil
		}

		net := input.GrossAmount.Decimal.
			Mul(decimal.NewFromFloat(100 - s.cfg.PlatformFeePercent)).
			Div(decimal.NewFromInt(100))
		commission := net.
			Mul(decimal.NewFromFloat(s.cfg.CommissionPercent)).
			Div(decimal.NewFromInt(100)).
			Round(2)
		clearsAt := occurredAt.AddDate(0, 0, s.cfg.ClearingDays)

		entry = &models.CommissionEntry{
			TransactionID:    txID,
			ReferralRecordID: referralRecordID,
			PayerID:          payer.ID,
			RecipientID:      recipientID,
			ListingID:        listingID,
			GrossAmount:      input.GrossAmount,
			NetAmount:        models.NewMoneyFromDecimal(net),
			CommissionAmount: models.NewMoneyFromDecimal(commission),
			RatePercent:      models.NewMoneyFromDecimal(decimal.NewFromFloat(s.cfg.CommissionPercent)),
			Currency:         currency,
			State:            constants.CommissionStatePending,
			ClearsAt:         &clearsAt,
		}
		if err := commissionRepo.Create(entry); err != nil {
			if isUniqueViolation(err) {
				existing, getErr := commissionRepo.GetByTransactionID(txID)
				if getErr != nil {
					return getErr
				}
				entry = existing
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if entry != nil {
		logger.Infow("ledger_commission_recorded",
			"transaction_id", txID,
			"entry_id", entry.ID,
			"recipient_id", entry.RecipientID,
			"commission", entry.CommissionAmount.String(),
		)
	}
	return entry, nil
}

// resolveRecipient 受益人判定：条目改派优先（不可指向付款人本人），其次付款人的推荐人。
func (s *LedgerService) resolveRecipient(tx *gorm.DB, payer *models.Identity, listingID *uint) (uint, *uint, error) {
	var resolvedListing *uint

	if listingID != nil && *listingID != 0 {
		listing, err := s.listingRepo.WithTx(tx).GetByID(*listingID)
		if err != nil {
			return 0, nil, err
		}
		if listing != nil {
			id := listing.ID
			resolvedListing = &id
			if listing.DelegateRecipientID != nil && *listing.DelegateRecipientID != payer.ID {
				if ok, err := s.recipientEligible(*listing.DelegateRecipientID); err != nil {
					return 0, nil, err
				} else if ok {
					return *listing.DelegateRecipientID, resolvedListing, nil
				}
			}
		}
	}

	if payer.ReferredByID != nil && *payer.ReferredByID != payer.ID {
		if ok, err := s.recipientEligible(*payer.ReferredByID); err != nil {
			return 0, nil, err
		} else if ok {
			return *payer.ReferredByID, resolvedListing, nil
		}
	}
	return 0, resolvedListing, nil
}

func (s *LedgerService) recipientEligible(recipientID uint) (bool, error) {
	recipient, err := s.identityRepo.GetByID(recipientID)
	if err != nil {
		return false, err
	}
	if recipient == nil || recipient.Status != constants.IdentityStatusActive {
		logger.Warnw("ledger_recipient_ineligible", "recipient_id", recipientID)
		return false, nil
	}
	return true, nil
}

// convertPayerReferral 付款人的未终态推荐记录在首笔结算时转化。
func (s *LedgerService) convertPayerReferral(tx *gorm.DB, payerID uint, at time.Time) (*uint, error) {
	record, err := s.referralRepo.WithTx(tx).GetOpenByReferredID(payerID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if err := s.referral.MarkConverted(tx, record.ID, at); err != nil {
		if errors.Is(err, ErrRecordStateInvalid) || errors.Is(err, ErrRecordTerminal) {
			logger.Warnw("ledger_conversion_skipped",
				"record_id", record.ID,
				"state", record.State,
				"error", err,
			)
			id := record.ID
			return &id, nil
		}
		return nil, err
	}
	id := record.ID
	return &id, nil
}

// Reverse 交易冲正：仅作废 pending 条目；已清算或已支付的条目保留并告警留给人工处理。
func (s *LedgerService) Reverse(transactionID, reason string) error {
	txID := strings.TrimSpace(transactionID)
	if txID == "" {
		return ErrTransactionInvalid
	}
	if reason == "" {
		reason = "transaction reversed"
	}
	return s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		commissionRepo := s.commissionRepo.WithTx(tx)
		entry, err := commissionRepo.GetByTransactionIDForUpdate(txID)
		if err != nil {
			return err
		}
		if entry == nil {
			logger.Infow("ledger_reverse_no_entry", "transaction_id", txID)
			return nil
		}
		if entry.State != constants.CommissionStatePending {
			logger.Warnw("ledger_reverse_after_clearing",
				"transaction_id", txID,
				"entry_id", entry.ID,
				"state", entry.State,
			)
			return nil
		}
		now := time.Now()
		entry.State = constants.CommissionStateVoided
		entry.VoidReason = reason
		entry.UpdatedAt = now
		if err := commissionRepo.Update(entry); err != nil {
			return err
		}
		logger.Infow("ledger_commission_voided",
			"transaction_id", txID,
			"entry_id", entry.ID,
		)
		return nil
	})
}

// ListForRecipient 查询受益人的佣金条目列表
func (s *LedgerService) ListForRecipient(recipientID uint, page, pageSize int, state string) ([]models.CommissionEntry, int64, error) {
	return s.commissionRepo.List(repository.CommissionListFilter{
		Page:        page,
		PageSize:    pageSize,
		RecipientID: recipientID,
		State:       state,
	})
}

// SumsForRecipient 按台账状态汇总受益人佣金金额，lookbackDays<=0 表示不限时间。
func (s *LedgerService) SumsForRecipient(recipientID uint, lookbackDays int) (map[string]models.Money, error) {
	var since *time.Time
	if lookbackDays > 0 {
		t := time.Now().AddDate(0, 0, -lookbackDays)
		since = &t
	}
	sums := make(map[string]models.Money, 4)
	for _, state := range []string{
		constants.CommissionStatePending,
		constants.CommissionStateAvailable,
		constants.CommissionStatePaid,
		constants.CommissionStateVoided,
	} {
		total, err := s.commissionRepo.SumByRecipientAndStates(recipientID, []string{state}, since)
		if err != nil {
			return nil, err
		}
		sums[state] = total
	}
	return sums, nil
}
