package repository

import (
	"errors"
	"time"

	"github.com/referral-next/internal/models"

	"gorm.io/gorm"
)

// ListingRepository 服务条目数据访问接口
type ListingRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ListingRepository

	GetByID(id uint) (*models.Listing, error)
	GetByIDForOwner(id, ownerID uint) (*models.Listing, error)
	Create(listing *models.Listing) error
	Update(listing *models.Listing) error
	SetDelegate(listingID uint, delegateID *uint, updatedAt time.Time) (int64, error)
	ClearDelegateFor(recipientID uint, updatedAt time.Time) (int64, error)
}

// GormListingRepository GORM 服务条目仓储
type GormListingRepository struct {
	db *gorm.DB
}

// NewListingRepository 创建服务条目仓储
func NewListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormListingRepository) WithTx(tx *gorm.DB) ListingRepository {
	if tx == nil {
		return r
	}
	return &GormListingRepository{db: tx}
}

// Transaction 执行事务
func (r *GormListingRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取服务条目
func (r *GormListingRepository) GetByID(id uint) (*models.Listing, error) {
	if id == 0 {
		return nil, nil
	}
	var listing models.Listing
	if err := r.db.First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

// GetByIDForOwner 按ID获取属于指定所有人的服务条目
func (r *GormListingRepository) GetByIDForOwner(id, ownerID uint) (*models.Listing, error) {
	if id == 0 || ownerID == 0 {
		return nil, nil
	}
	var listing models.Listing
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

// Create 创建服务条目
func (r *GormListingRepository) Create(listing *models.Listing) error {
	return r.db.Create(listing).Error
}

// Update 更新服务条目
func (r *GormListingRepository) Update(listing *models.Listing) error {
	return r.db.Save(listing).Error
}

// SetDelegate 设置或清除佣金受益人改派
func (r *GormListingRepository) SetDelegate(listingID uint, delegateID *uint, updatedAt time.Time) (int64, error) {
	if listingID == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Listing{}).
		Where("id = ?", listingID).
		Updates(map[string]interface{}{
			"delegate_recipient_id": delegateID,
			"updated_at":            updatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ClearDelegateFor 受益人账号移除时清除指向其的改派
func (r *GormListingRepository) ClearDelegateFor(recipientID uint, updatedAt time.Time) (int64, error) {
	if recipientID == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Listing{}).
		Where("delegate_recipient_id = ?", recipientID).
		Updates(map[string]interface{}{
			"delegate_recipient_id": nil,
			"updated_at":            updatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
