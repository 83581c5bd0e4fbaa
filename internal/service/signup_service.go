package service

import (
	"strings"
	"time"

	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"

	"gorm.io/gorm"
)

// SignupService 消费外部认证服务的注册回调：创建身份并完成一次性推荐绑定。
type SignupService struct {
	cfg          config.ReferralConfig
	identityRepo repository.IdentityRepository
	referralRepo repository.ReferralRepository
	listingRepo  repository.ListingRepository
	attribution  *AttributionService
	referral     *ReferralService
}

// NewSignupService 创建注册服务
func NewSignupService(
	cfg config.ReferralConfig,
	identityRepo repository.IdentityRepository,
	referralRepo repository.ReferralRepository,
	listingRepo repository.ListingRepository,
	attribution *AttributionService,
	referral *ReferralService,
) *SignupService {
	return &SignupService{
		cfg:          cfg,
		identityRepo: identityRepo,
		referralRepo: referralRepo,
		listingRepo:  listingRepo,
		attribution:  attribution,
		referral:     referral,
	}
}

// SignupInput 注册回调载荷
type SignupInput struct {
	Email       string
	DisplayName string
	Roles       []string
	URLCode     string
	CookieValue string
	ManualCode  string
	ClientIP    string
}

// HandleSignup 处理注册回调。身份创建与一次性推荐绑定在同一事务内完成；
// 重复投递同一载荷为无操作成功；已绑定其他推荐人的身份出现新归因信号时
// 返回绑定冲突，绑定不会被覆盖。
func (s *SignupService) HandleSignup(input SignupInput) (*models.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, ErrTransactionInvalid
	}

	// 归因解析只读，放在事务外；身份按邮箱唯一，自荐判定用邮箱即可覆盖。
	existing, err := s.identityRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	var candidateID uint
	if existing != nil {
		candidateID = existing.ID
	}
	resolved, err := s.attribution.Resolve(AttributionInput{
		URLCode:     input.URLCode,
		CookieValue: input.CookieValue,
		ManualCode:  input.ManualCode,
		ClientIP:    input.ClientIP,
	}, candidateID, email)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var identity *models.Identity
	var bound *Attribution
	err = s.identityRepo.Transaction(func(tx *gorm.DB) error {
		identityRepo := s.identityRepo.WithTx(tx)

		var err error
		identity, err = identityRepo.GetByEmail(email)
		if err != nil {
			return err
		}
		if identity == nil {
			identity, err = s.createIdentity(tx, email, input.DisplayName, input.Roles)
			if err != nil {
				return err
			}
		}
		if identity.Status != constants.IdentityStatusActive {
			return ErrIdentityDisabled
		}

		attr := resolved
		if attr == nil {
			return nil
		}

		if identity.ReferredByID != nil {
			if *identity.ReferredByID == attr.Referrer.ID {
				return nil
			}
			logger.Warnw("signup_binding_conflict",
				"identity_id", identity.ID,
				"bound_referrer_id", *identity.ReferredByID,
				"attempted_referrer_id", attr.Referrer.ID,
			)
			return ErrBindingConflict
		}

		affected, err := identityRepo.BindReferrer(identity.ID, attr.Referrer.ID, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			// 条件更新未命中说明并发请求已写入绑定，重新读取判定是否冲突。
			current, err := identityRepo.GetByID(identity.ID)
			if err != nil {
				return err
			}
			if current == nil || current.ReferredByID == nil || *current.ReferredByID != attr.Referrer.ID {
				return ErrBindingConflict
			}
			identity = current
			return nil
		}
		identity.ReferredByID = &attr.Referrer.ID
		bound = attr

		record, err := s.resolveRecord(tx, attr, email, now)
		if err != nil {
			return err
		}
		return s.referral.MarkSignedUp(tx, record, identity.ID, email, now)
	})
	if err != nil {
		return nil, err
	}

	if resolved == nil {
		logger.Infow("signup_organic", "identity_id", identity.ID)
		return identity, nil
	}
	if bound != nil {
		logger.Infow("signup_bound",
			"identity_id", identity.ID,
			"referrer_id", bound.Referrer.ID,
			"method", bound.Method,
		)
	}
	return identity, nil
}

// resolveRecord 定位或创建本次绑定对应的推荐记录。
func (s *SignupService) resolveRecord(tx *gorm.DB, attr *Attribution, email string, now time.Time) (*models.ReferralRecord, error) {
	repo := s.referralRepo.WithTx(tx)

	if attr.Record != nil {
		return attr.Record, nil
	}
	existing, err := repo.GetOpenByReferrerAndEmail(attr.Referrer.ID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	record := &models.ReferralRecord{
		Ref:           generateRecordRef(),
		ReferrerID:    attr.Referrer.ID,
		ReferredEmail: email,
		Method:        attr.Method,
		State:         constants.ReferralStateReferred,
		ExpiresAt:     now.AddDate(0, 0, s.cfg.ExpiryDays),
	}
	if err := repo.Create(record); err != nil {
		return nil, err
	}
	if err := repo.AppendEvent(&models.ReferralEvent{
		ReferralRecordID: record.ID,
		FromState:        "",
		ToState:          constants.ReferralStateReferred,
		Actor:            ActorWebhook,
		Note:             "signup attribution",
		CreatedAt:        now,
	}); err != nil {
		return nil, err
	}
	return record, nil
}

// createIdentity 在外层事务内创建身份并发放推荐码。
// 每次写入走嵌套事务（保存点），唯一约束冲突时回滚到保存点后重试换码。
func (s *SignupService) createIdentity(tx *gorm.DB, email, displayName string, roles []string) (*models.Identity, error) {
	if len(roles) == 0 {
		roles = []string{constants.IdentityRoleClient}
	}
	const maxRetry = 8
	for i := 0; i < maxRetry; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, err
		}
		identity := &models.Identity{
			Email:        email,
			DisplayName:  strings.TrimSpace(displayName),
			ReferralCode: code,
			Roles:        roles,
			Status:       constants.IdentityStatusActive,
		}
		err = tx.Transaction(func(inner *gorm.DB) error {
			return s.identityRepo.WithTx(inner).Create(identity)
		})
		if err != nil {
			if isUniqueViolation(err) {
				// 邮箱撞并发创建时直接复用既有身份。
				existing, getErr := s.identityRepo.WithTx(tx).GetByEmail(email)
				if getErr != nil {
					return nil, getErr
				}
				if existing != nil {
					return existing, nil
				}
				continue
			}
			return nil, err
		}
		return identity, nil
	}
	return nil, ErrCodeInvalid
}

// HandleIdentityRemoved 身份移除时的下游清理：解除其作为推荐人的绑定与受益人改派。
func (s *SignupService) HandleIdentityRemoved(identityID uint) error {
	if identityID == 0 {
		return nil
	}
	now := time.Now()
	return s.identityRepo.Transaction(func(tx *gorm.DB) error {
		if _, err := s.identityRepo.WithTx(tx).ClearReferrerFor(identityID, now); err != nil {
			return err
		}
		if _, err := s.listingRepo.WithTx(tx).ClearDelegateFor(identityID, now); err != nil {
			return err
		}
		return nil
	})
}
