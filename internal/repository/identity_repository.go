package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/referral-next/internal/models"

	"gorm.io/gorm"
)

// IdentityRepository 身份数据访问接口
type IdentityRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) IdentityRepository

	GetByID(id uint) (*models.Identity, error)
	GetByEmail(email string) (*models.Identity, error)
	GetByReferralCode(code string) (*models.Identity, error)
	Create(identity *models.Identity) error
	Update(identity *models.Identity) error
	// BindReferrer 条件写入 referred_by_id，仅当该列仍为空时生效，返回受影响行数。
	BindReferrer(identityID, referrerID uint, updatedAt time.Time) (int64, error)
	ClearReferrerFor(referrerID uint, updatedAt time.Time) (int64, error)
}

// GormIdentityRepository GORM 身份仓储
type GormIdentityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository 创建身份仓储
func NewIdentityRepository(db *gorm.DB) *GormIdentityRepository {
	return &GormIdentityRepository{db: db}
}

// WithTx 绑定事务
func (r *GormIdentityRepository) WithTx(tx *gorm.DB) IdentityRepository {
	if tx == nil {
		return r
	}
	return &GormIdentityRepository{db: tx}
}

// Transaction 执行事务
func (r *GormIdentityRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取身份
func (r *GormIdentityRepository) GetByID(id uint) (*models.Identity, error) {
	if id == 0 {
		return nil, nil
	}
	var identity models.Identity
	if err := r.db.First(&identity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

// GetByEmail 按邮箱获取身份
func (r *GormIdentityRepository) GetByEmail(email string) (*models.Identity, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, nil
	}
	var identity models.Identity
	if err := r.db.Where("email = ?", normalized).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

// GetByReferralCode 按推荐码获取身份（大小写敏感，不做归一化）
func (r *GormIdentityRepository) GetByReferralCode(code string) (*models.Identity, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, nil
	}
	var identity models.Identity
	if err := r.db.Where("referral_code = ?", trimmed).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if identity.ReferralCode != trimmed {
		// 推荐码区分大小写；列 collation 不区分时需二次比对。
		return nil, nil
	}
	return &identity, nil
}

// Create 创建身份
func (r *GormIdentityRepository) Create(identity *models.Identity) error {
	return r.db.Create(identity).Error
}

// Update 更新身份
func (r *GormIdentityRepository) Update(identity *models.Identity) error {
	return r.db.Save(identity).Error
}

// BindReferrer 条件写入推荐人绑定
func (r *GormIdentityRepository) BindReferrer(identityID, referrerID uint, updatedAt time.Time) (int64, error) {
	if identityID == 0 || referrerID == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Identity{}).
		Where("id = ? AND referred_by_id IS NULL", identityID).
		Updates(map[string]interface{}{
			"referred_by_id": referrerID,
			"updated_at":     updatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ClearReferrerFor 推荐人账号移除时置空其下游绑定
func (r *GormIdentityRepository) ClearReferrerFor(referrerID uint, updatedAt time.Time) (int64, error) {
	if referrerID == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Identity{}).
		Where("referred_by_id = ?", referrerID).
		Updates(map[string]interface{}{
			"referred_by_id": nil,
			"updated_at":     updatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
