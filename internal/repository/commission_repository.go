package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionRepository 佣金台账数据访问接口
type CommissionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	GetByID(id uint) (*models.CommissionEntry, error)
	GetByTransactionID(transactionID string) (*models.CommissionEntry, error)
	GetByTransactionIDForUpdate(transactionID string) (*models.CommissionEntry, error)
	Create(entry *models.CommissionEntry) error
	Update(entry *models.CommissionEntry) error
	List(filter CommissionListFilter) ([]models.CommissionEntry, int64, error)

	// ReleaseCleared 将清算期已到的 pending 条目批量转为 available，返回受影响行数。
	ReleaseCleared(now time.Time) (int64, error)
	ListAvailableByRecipientForUpdate(recipientID uint) ([]models.CommissionEntry, error)
	ListRecipientsOverThreshold(threshold models.Money) ([]CommissionRecipientSum, error)
	AssignBatch(entryIDs []uint, batchID uint, state string, paidAt *time.Time) (int64, error)
	SumByRecipientAndStates(recipientID uint, states []string, since *time.Time) (models.Money, error)
}

// GormCommissionRepository GORM 佣金台账仓储
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金台账仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取佣金条目
func (r *GormCommissionRepository) GetByID(id uint) (*models.CommissionEntry, error) {
	if id == 0 {
		return nil, nil
	}
	var entry models.CommissionEntry
	if err := r.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// GetByTransactionID 按外部交易号获取佣金条目
func (r *GormCommissionRepository) GetByTransactionID(transactionID string) (*models.CommissionEntry, error) {
	return r.getByTransactionID(transactionID, false)
}

// GetByTransactionIDForUpdate 按外部交易号获取佣金条目并加锁
func (r *GormCommissionRepository) GetByTransactionIDForUpdate(transactionID string) (*models.CommissionEntry, error) {
	return r.getByTransactionID(transactionID, true)
}

func (r *GormCommissionRepository) getByTransactionID(transactionID string, forUpdate bool) (*models.CommissionEntry, error) {
	trimmed := strings.TrimSpace(transactionID)
	if trimmed == "" {
		return nil, nil
	}
	query := r.db
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var entry models.CommissionEntry
	if err := query.Where("transaction_id = ?", trimmed).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Create 创建佣金条目
func (r *GormCommissionRepository) Create(entry *models.CommissionEntry) error {
	return r.db.Create(entry).Error
}

// Update 更新佣金条目
func (r *GormCommissionRepository) Update(entry *models.CommissionEntry) error {
	return r.db.Save(entry).Error
}

// List 查询佣金条目列表
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.CommissionEntry, int64, error) {
	query := r.db.Model(&models.CommissionEntry{})
	if filter.RecipientID != 0 {
		query = query.Where("commission_entries.recipient_id = ?", filter.RecipientID)
	}
	if filter.PayerID != 0 {
		query = query.Where("commission_entries.payer_id = ?", filter.PayerID)
	}
	if txID := strings.TrimSpace(filter.TransactionID); txID != "" {
		query = query.Where("commission_entries.transaction_id = ?", txID)
	}
	if state := strings.TrimSpace(filter.State); state != "" {
		query = query.Where("commission_entries.state = ?", state)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("commission_entries.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("commission_entries.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.CommissionEntry
	if err := query.Order("commission_entries.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ReleaseCleared 清算期到期的 pending 条目批量转为 available
func (r *GormCommissionRepository) ReleaseCleared(now time.Time) (int64, error) {
	result := r.db.Model(&models.CommissionEntry{}).
		Where("state = ? AND clears_at IS NOT NULL AND clears_at <= ?", constants.CommissionStatePending, now).
		Updates(map[string]interface{}{
			"state":        constants.CommissionStateAvailable,
			"available_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListAvailableByRecipientForUpdate 查询受益人全部可结算条目并加锁
func (r *GormCommissionRepository) ListAvailableByRecipientForUpdate(recipientID uint) ([]models.CommissionEntry, error) {
	if recipientID == 0 {
		return []models.CommissionEntry{}, nil
	}
	var rows []models.CommissionEntry
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("recipient_id = ? AND state = ?", recipientID, constants.CommissionStateAvailable).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListRecipientsOverThreshold 汇总可结算余额达到门槛的受益人
func (r *GormCommissionRepository) ListRecipientsOverThreshold(threshold models.Money) ([]CommissionRecipientSum, error) {
	var rows []CommissionRecipientSum
	if err := r.db.Model(&models.CommissionEntry{}).
		Select("recipient_id, COALESCE(SUM(commission_amount), 0) AS total, COUNT(*) AS entry_count").
		Where("state = ?", constants.CommissionStateAvailable).
		Group("recipient_id").
		Having("COALESCE(SUM(commission_amount), 0) >= ?", threshold.Decimal).
		Order("recipient_id asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AssignBatch 批量将条目划入结算批次并更新状态
func (r *GormCommissionRepository) AssignBatch(entryIDs []uint, batchID uint, state string, paidAt *time.Time) (int64, error) {
	if len(entryIDs) == 0 || batchID == 0 {
		return 0, nil
	}
	values := map[string]interface{}{
		"payout_batch_id": batchID,
		"state":           state,
		"updated_at":      time.Now(),
	}
	if paidAt != nil {
		values["paid_at"] = *paidAt
	}
	result := r.db.Model(&models.CommissionEntry{}).
		Where("id IN ?", entryIDs).
		Updates(values)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumByRecipientAndStates 按状态汇总受益人的佣金总额，since 非空时只统计其后的条目
func (r *GormCommissionRepository) SumByRecipientAndStates(recipientID uint, states []string, since *time.Time) (models.Money, error) {
	if recipientID == 0 || len(states) == 0 {
		return models.Money{}, nil
	}
	var row struct {
		Total models.Money `gorm:"column:total"`
	}
	query := r.db.Model(&models.CommissionEntry{}).
		Select("COALESCE(SUM(commission_amount), 0) AS total").
		Where("recipient_id = ? AND state IN ?", recipientID, states)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	if err := query.Scan(&row).Error; err != nil {
		return models.Money{}, err
	}
	return row.Total, nil
}
