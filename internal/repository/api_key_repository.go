package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/models"

	"gorm.io/gorm"
)

// APIKeyRepository 合作方 API 凭证数据访问接口
type APIKeyRepository interface {
	GetByID(id uint) (*models.APIKey, error)
	GetActiveByPrefix(prefix string) (*models.APIKey, error)
	Create(key *models.APIKey) error
	Update(key *models.APIKey) error
	TouchLastUsed(id uint, usedAt time.Time) error
	List(page, pageSize int) ([]models.APIKey, int64, error)
}

// GormAPIKeyRepository GORM API 凭证仓储
type GormAPIKeyRepository struct {
	db *gorm.DB
}

// NewAPIKeyRepository 创建 API 凭证仓储
func NewAPIKeyRepository(db *gorm.DB) *GormAPIKeyRepository {
	return &GormAPIKeyRepository{db: db}
}

// GetByID 按ID获取凭证
func (r *GormAPIKeyRepository) GetByID(id uint) (*models.APIKey, error) {
	if id == 0 {
		return nil, nil
	}
	var key models.APIKey
	if err := r.db.First(&key, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

// GetActiveByPrefix 按公开前缀获取启用中的凭证
func (r *GormAPIKeyRepository) GetActiveByPrefix(prefix string) (*models.APIKey, error) {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return nil, nil
	}
	var key models.APIKey
	if err := r.db.Where("prefix = ? AND status = ?", trimmed, constants.APIKeyStatusActive).
		First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

// Create 创建凭证
func (r *GormAPIKeyRepository) Create(key *models.APIKey) error {
	return r.db.Create(key).Error
}

// Update 更新凭证
func (r *GormAPIKeyRepository) Update(key *models.APIKey) error {
	return r.db.Save(key).Error
}

// TouchLastUsed 记录凭证最近使用时间
func (r *GormAPIKeyRepository) TouchLastUsed(id uint, usedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", usedAt).Error
}

// List 查询凭证列表
func (r *GormAPIKeyRepository) List(page, pageSize int) ([]models.APIKey, int64, error) {
	query := r.db.Model(&models.APIKey{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, page, pageSize)

	var rows []models.APIKey
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
