package service

import (
	"context"
	"strings"
	"time"

	"github.com/referral-next/internal/cache"
	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"

	"gorm.io/gorm"
)

// 状态流转触发方标识
const (
	ActorWebhook = "webhook"
	ActorSweep   = "sweep"
	ActorPartner = "partner"
	ActorLedger  = "ledger"
	ActorSystem  = "system"
)

// ReferralService 推荐记录生命周期管理
type ReferralService struct {
	cfg          config.ReferralConfig
	identityRepo repository.IdentityRepository
	referralRepo repository.ReferralRepository
	signature    *SignatureService
}

// NewReferralService 创建推荐服务
func NewReferralService(
	cfg config.ReferralConfig,
	identityRepo repository.IdentityRepository,
	referralRepo repository.ReferralRepository,
	signature *SignatureService,
) *ReferralService {
	return &ReferralService{
		cfg:          cfg,
		identityRepo: identityRepo,
		referralRepo: referralRepo,
		signature:    signature,
	}
}

// LinkResult 推荐链接处理结果
type LinkResult struct {
	Record      *models.ReferralRecord
	CookieValue string
}

// HandleLink 处理推荐链接点击：校验推荐码、创建或复用点击记录、签发归因 Cookie。
// existingCookie 携带上一次点击的 Cookie 值，同一推荐人的未终态记录直接复用。
func (s *ReferralService) HandleLink(ctx context.Context, code, existingCookie, clientIP string) (*LinkResult, error) {
	referrer, err := s.lookupActiveReferrer(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, ErrCodeInvalid
	}

	if record := s.reusableRecord(existingCookie, referrer.ID, clientIP); record != nil {
		return &LinkResult{
			Record:      record,
			CookieValue: s.signature.EncodeCookie(record.Ref),
		}, nil
	}

	now := time.Now()
	record := &models.ReferralRecord{
		Ref:        generateRecordRef(),
		ReferrerID: referrer.ID,
		Method:     constants.AttributionMethodURL,
		State:      constants.ReferralStateReferred,
		ExpiresAt:  now.AddDate(0, 0, s.cfg.ExpiryDays),
	}
	err = s.referralRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.referralRepo.WithTx(tx)
		if err := repo.Create(record); err != nil {
			return err
		}
		return repo.AppendEvent(&models.ReferralEvent{
			ReferralRecordID: record.ID,
			FromState:        "",
			ToState:          constants.ReferralStateReferred,
			Actor:            ActorSystem,
			Note:             "link click",
			CreatedAt:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("referral_link_recorded",
		"record_id", record.ID,
		"referrer_id", referrer.ID,
		"ref", record.Ref,
	)
	return &LinkResult{
		Record:      record,
		CookieValue: s.signature.EncodeCookie(record.Ref),
	}, nil
}

// lookupActiveReferrer 推荐码热路径查询，缓存命中时跳过数据库。
func (s *ReferralService) lookupActiveReferrer(ctx context.Context, code string) (*models.Identity, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, nil
	}

	if state, hit, err := cache.GetReferralCodeState(ctx, trimmed); err == nil && hit {
		if state.Status != constants.IdentityStatusActive {
			return nil, nil
		}
		identity, err := s.identityRepo.GetByID(state.IdentityID)
		if err != nil {
			return nil, err
		}
		if identity != nil && identity.ReferralCode == trimmed {
			return identity, nil
		}
	}

	identity, err := s.identityRepo.GetByReferralCode(trimmed)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, nil
	}
	if cacheErr := cache.SetReferralCodeState(ctx, trimmed, cache.ReferralCodeState{
		IdentityID: identity.ID,
		Status:     identity.Status,
	}); cacheErr != nil {
		logger.Debugw("referral_code_cache_set_failed", "error", cacheErr)
	}
	if identity.Status != constants.IdentityStatusActive {
		return nil, nil
	}
	return identity, nil
}

// reusableRecord 同一推荐人重复点击时复用未终态记录。
func (s *ReferralService) reusableRecord(cookieValue string, referrerID uint, clientIP string) *models.ReferralRecord {
	if strings.TrimSpace(cookieValue) == "" {
		return nil
	}
	ref, ok := s.signature.DecodeCookie(cookieValue, clientIP)
	if !ok {
		return nil
	}
	record, err := s.referralRepo.GetByRef(ref)
	if err != nil || record == nil {
		return nil
	}
	if record.ReferrerID != referrerID || record.IsTerminal() {
		return nil
	}
	if time.Now().After(record.ExpiresAt) {
		return nil
	}
	return record
}

// CreatePartnerInput 合作方预创建推荐记录的入参
type CreatePartnerInput struct {
	ReferralCode  string
	ReferredEmail string
	Note          string
}

// CreatePartner 合作方 API 预创建推荐记录（注册前，按邮箱捕获被推荐人）。
func (s *ReferralService) CreatePartner(input CreatePartnerInput) (*models.ReferralRecord, error) {
	email := strings.ToLower(strings.TrimSpace(input.ReferredEmail))
	if email == "" {
		return nil, ErrTransactionInvalid
	}
	referrer, err := s.identityRepo.GetByReferralCode(strings.TrimSpace(input.ReferralCode))
	if err != nil {
		return nil, err
	}
	if referrer == nil || referrer.Status != constants.IdentityStatusActive {
		return nil, ErrCodeInvalid
	}
	if strings.EqualFold(referrer.Email, email) {
		return nil, ErrSelfReferral
	}

	existing, err := s.referralRepo.GetOpenByReferrerAndEmail(referrer.ID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrReferralExists
	}

	now := time.Now()
	record := &models.ReferralRecord{
		Ref:           generateRecordRef(),
		ReferrerID:    referrer.ID,
		ReferredEmail: email,
		Method:        constants.AttributionMethodAPI,
		State:         constants.ReferralStateReferred,
		ExpiresAt:     now.AddDate(0, 0, s.cfg.ExpiryDays),
	}
	err = s.referralRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.referralRepo.WithTx(tx)
		if err := repo.Create(record); err != nil {
			if isUniqueViolation(err) {
				return ErrReferralExists
			}
			return err
		}
		return repo.AppendEvent(&models.ReferralEvent{
			ReferralRecordID: record.ID,
			FromState:        "",
			ToState:          constants.ReferralStateReferred,
			Actor:            ActorPartner,
			Note:             input.Note,
			CreatedAt:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("referral_partner_created",
		"record_id", record.ID,
		"referrer_id", referrer.ID,
	)
	return record, nil
}

// transition 守卫式状态流转并追加事件，返回是否实际发生流转。
func (s *ReferralService) transition(tx *gorm.DB, recordID uint, fromStates []string, toState string, updates map[string]interface{}, actor, note string, at time.Time) (bool, error) {
	repo := s.referralRepo.WithTx(tx)
	affected, err := repo.TransitionState(recordID, fromStates, toState, updates)
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	if err := repo.AppendEvent(&models.ReferralEvent{
		ReferralRecordID: recordID,
		FromState:        fromStates[0],
		ToState:          toState,
		Actor:            actor,
		Note:             note,
		CreatedAt:        at,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// MarkSignedUp 点击记录在被推荐人注册时流转为 signed_up。
func (s *ReferralService) MarkSignedUp(tx *gorm.DB, record *models.ReferralRecord, referredID uint, email string, at time.Time) error {
	if record.IsTerminal() {
		return ErrRecordTerminal
	}
	if record.State == constants.ReferralStateSignedUp {
		return nil
	}
	moved, err := s.transition(tx, record.ID,
		[]string{constants.ReferralStateReferred},
		constants.ReferralStateSignedUp,
		map[string]interface{}{
			"referred_id":    referredID,
			"referred_email": strings.ToLower(strings.TrimSpace(email)),
			"signed_up_at":   at,
			"updated_at":     at,
		},
		ActorWebhook, "signup", at)
	if err != nil {
		return err
	}
	if !moved {
		return ErrRecordStateInvalid
	}
	return nil
}

// MarkConverted 被推荐人首笔结算交易时流转为 converted。重复调用为无操作。
func (s *ReferralService) MarkConverted(tx *gorm.DB, recordID uint, at time.Time) error {
	repo := s.referralRepo.WithTx(tx)
	record, err := repo.GetByID(recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrNotFound
	}
	if record.State == constants.ReferralStateConverted {
		return nil
	}
	if record.State == constants.ReferralStateExpired {
		return ErrRecordTerminal
	}
	moved, err := s.transition(tx, recordID,
		[]string{constants.ReferralStateSignedUp},
		constants.ReferralStateConverted,
		map[string]interface{}{
			"converted_at": at,
			"updated_at":   at,
		},
		ActorLedger, "first settled transaction", at)
	if err != nil {
		return err
	}
	if !moved {
		return ErrRecordStateInvalid
	}
	return nil
}

// ListForReferrer 查询推荐人的推荐记录列表
func (s *ReferralService) ListForReferrer(referrerID uint, page, pageSize int, state string) ([]models.ReferralRecord, int64, error) {
	return s.referralRepo.List(repository.ReferralListFilter{
		Page:       page,
		PageSize:   pageSize,
		ReferrerID: referrerID,
		State:      state,
	})
}

// Search 合作方检索推荐记录
func (s *ReferralService) Search(filter repository.ReferralListFilter) ([]models.ReferralRecord, int64, error) {
	return s.referralRepo.List(filter)
}

// StateCounts 按状态统计推荐人的记录数量，lookbackDays<=0 表示不限时间。
func (s *ReferralService) StateCounts(referrerID uint, lookbackDays int) (map[string]int64, error) {
	var since *time.Time
	if lookbackDays > 0 {
		t := time.Now().AddDate(0, 0, -lookbackDays)
		since = &t
	}
	rows, err := s.referralRepo.CountByReferrerAndState(referrerID, since)
	if err != nil {
		return nil, err
	}
	counts := map[string]int64{
		constants.ReferralStateReferred:  0,
		constants.ReferralStateSignedUp:  0,
		constants.ReferralStateConverted: 0,
		constants.ReferralStateExpired:   0,
	}
	for _, row := range rows {
		counts[row.State] = row.Total
	}
	return counts, nil
}

// RebuildProjection 从事件日志重放记录状态，修正 state 列与事件流的偏差。
func (s *ReferralService) RebuildProjection(recordID uint) (string, error) {
	record, err := s.referralRepo.GetByID(recordID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", ErrNotFound
	}
	events, err := s.referralRepo.ListEventsByRecord(recordID)
	if err != nil {
		return "", err
	}
	replayed := constants.ReferralStateReferred
	for _, event := range events {
		if event.ToState != "" {
			replayed = event.ToState
		}
	}
	if replayed == record.State {
		return replayed, nil
	}
	logger.Warnw("referral_projection_drift",
		"record_id", recordID,
		"stored_state", record.State,
		"replayed_state", replayed,
	)
	err = s.referralRepo.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.ReferralRecord{}).
			Where("id = ?", recordID).
			Updates(map[string]interface{}{
				"state":      replayed,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return "", err
	}
	return replayed, nil
}

// EnsureReferralCode 为身份补发推荐码（冲突重试）。
func (s *ReferralService) EnsureReferralCode(identity *models.Identity) error {
	if identity == nil || identity.ReferralCode != "" {
		return nil
	}
	const maxRetry = 8
	for i := 0; i < maxRetry; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return err
		}
		identity.ReferralCode = code
		if err := s.identityRepo.Update(identity); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return err
		}
		return nil
	}
	return ErrCodeInvalid
}
