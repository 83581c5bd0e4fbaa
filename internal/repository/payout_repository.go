package repository

import (
	"errors"
	"strings"

	"github.com/referral-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutRepository 结算批次数据访问接口
type PayoutRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PayoutRepository

	GetByID(id uint) (*models.PayoutBatch, error)
	GetByIDForUpdate(id uint) (*models.PayoutBatch, error)
	GetByIdempotencyKey(key string) (*models.PayoutBatch, error)
	Create(batch *models.PayoutBatch) error
	Update(batch *models.PayoutBatch) error
	List(filter PayoutBatchListFilter) ([]models.PayoutBatch, int64, error)
	ListByStates(states []string, limit int) ([]models.PayoutBatch, error)
}

// GormPayoutRepository GORM 结算批次仓储
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建结算批次仓储
func NewPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPayoutRepository) WithTx(tx *gorm.DB) PayoutRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPayoutRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取批次
func (r *GormPayoutRepository) GetByID(id uint) (*models.PayoutBatch, error) {
	if id == 0 {
		return nil, nil
	}
	var batch models.PayoutBatch
	if err := r.db.First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetByIDForUpdate 按ID获取批次并加锁
func (r *GormPayoutRepository) GetByIDForUpdate(id uint) (*models.PayoutBatch, error) {
	if id == 0 {
		return nil, nil
	}
	var batch models.PayoutBatch
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetByIdempotencyKey 按幂等键获取批次
func (r *GormPayoutRepository) GetByIdempotencyKey(key string) (*models.PayoutBatch, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, nil
	}
	var batch models.PayoutBatch
	if err := r.db.Where("idempotency_key = ?", trimmed).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// Create 创建批次
func (r *GormPayoutRepository) Create(batch *models.PayoutBatch) error {
	return r.db.Create(batch).Error
}

// Update 更新批次
func (r *GormPayoutRepository) Update(batch *models.PayoutBatch) error {
	return r.db.Save(batch).Error
}

// List 查询批次列表
func (r *GormPayoutRepository) List(filter PayoutBatchListFilter) ([]models.PayoutBatch, int64, error) {
	query := r.db.Model(&models.PayoutBatch{})
	if filter.RecipientID != 0 {
		query = query.Where("payout_batches.recipient_id = ?", filter.RecipientID)
	}
	if state := strings.TrimSpace(filter.State); state != "" {
		query = query.Where("payout_batches.state = ?", state)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.PayoutBatch
	if err := query.Order("payout_batches.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListByStates 查询指定状态的批次（用于失败批次重试）
func (r *GormPayoutRepository) ListByStates(states []string, limit int) ([]models.PayoutBatch, error) {
	if len(states) == 0 {
		return []models.PayoutBatch{}, nil
	}
	if limit <= 0 {
		limit = 100
	}
	var rows []models.PayoutBatch
	if err := r.db.Where("state IN ?", states).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
