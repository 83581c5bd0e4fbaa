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

// ReferralRepository 推荐记录数据访问接口
type ReferralRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ReferralRepository

	GetByID(id uint) (*models.ReferralRecord, error)
	GetByRef(ref string) (*models.ReferralRecord, error)
	GetOpenByReferredID(referredID uint) (*models.ReferralRecord, error)
	GetOpenByReferrerAndEmail(referrerID uint, email string) (*models.ReferralRecord, error)
	Create(record *models.ReferralRecord) error
	// TransitionState 守卫式状态更新：仅当当前状态在 fromStates 内才生效，返回受影响行数。
	TransitionState(id uint, fromStates []string, toState string, updates map[string]interface{}) (int64, error)
	List(filter ReferralListFilter) ([]models.ReferralRecord, int64, error)
	ListDueForExpiry(now time.Time, limit int) ([]models.ReferralRecord, error)
	CountByReferrerAndState(referrerID uint, since *time.Time) ([]ReferralStateCount, error)

	AppendEvent(event *models.ReferralEvent) error
	ListEventsByRecord(recordID uint) ([]models.ReferralEvent, error)
}

// GormReferralRepository GORM 推荐记录仓储
type GormReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository 创建推荐记录仓储
func NewReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReferralRepository) WithTx(tx *gorm.DB) ReferralRepository {
	if tx == nil {
		return r
	}
	return &GormReferralRepository{db: tx}
}

// Transaction 执行事务
func (r *GormReferralRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取推荐记录
func (r *GormReferralRepository) GetByID(id uint) (*models.ReferralRecord, error) {
	if id == 0 {
		return nil, nil
	}
	var record models.ReferralRecord
	if err := r.db.Preload("Referrer").First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByRef 按记录引用获取推荐记录
func (r *GormReferralRepository) GetByRef(ref string) (*models.ReferralRecord, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return nil, nil
	}
	var record models.ReferralRecord
	if err := r.db.Where("ref = ?", trimmed).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetOpenByReferredID 查询被推荐人当前未终态的推荐记录
func (r *GormReferralRepository) GetOpenByReferredID(referredID uint) (*models.ReferralRecord, error) {
	if referredID == 0 {
		return nil, nil
	}
	var record models.ReferralRecord
	if err := r.db.Where("referred_id = ? AND state IN ?", referredID, constants.OpenReferralStates).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetOpenByReferrerAndEmail 查询 (推荐人, 被推荐邮箱) 的未终态推荐记录
func (r *GormReferralRepository) GetOpenByReferrerAndEmail(referrerID uint, email string) (*models.ReferralRecord, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if referrerID == 0 || normalized == "" {
		return nil, nil
	}
	var record models.ReferralRecord
	if err := r.db.Where("referrer_id = ? AND referred_email = ? AND state IN ?",
		referrerID, normalized, constants.OpenReferralStates).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create 创建推荐记录
func (r *GormReferralRepository) Create(record *models.ReferralRecord) error {
	return r.db.Create(record).Error
}

// TransitionState 守卫式状态更新
func (r *GormReferralRepository) TransitionState(id uint, fromStates []string, toState string, updates map[string]interface{}) (int64, error) {
	if id == 0 || len(fromStates) == 0 || strings.TrimSpace(toState) == "" {
		return 0, nil
	}
	values := map[string]interface{}{
		"state": toState,
	}
	for column, value := range updates {
		values[column] = value
	}
	result := r.db.Model(&models.ReferralRecord{}).
		Where("id = ? AND state IN ?", id, fromStates).
		Updates(values)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// List 查询推荐记录列表
func (r *GormReferralRepository) List(filter ReferralListFilter) ([]models.ReferralRecord, int64, error) {
	query := r.db.Model(&models.ReferralRecord{}).Preload("Referred")
	if filter.ReferrerID != 0 {
		query = query.Where("referral_records.referrer_id = ?", filter.ReferrerID)
	}
	if filter.ReferredID != 0 {
		query = query.Where("referral_records.referred_id = ?", filter.ReferredID)
	}
	if email := strings.ToLower(strings.TrimSpace(filter.ReferredEmail)); email != "" {
		query = query.Where("referral_records.referred_email = ?", email)
	}
	if state := strings.TrimSpace(filter.State); state != "" {
		query = query.Where("referral_records.state = ?", state)
	}
	if method := strings.TrimSpace(filter.Method); method != "" {
		query = query.Where("referral_records.method = ?", method)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("referral_records.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("referral_records.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.ReferralRecord
	if err := query.Order("referral_records.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListDueForExpiry 查询已过期但仍处于未终态的推荐记录并加锁
func (r *GormReferralRepository) ListDueForExpiry(now time.Time, limit int) ([]models.ReferralRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []models.ReferralRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("state IN ? AND expires_at <= ?", constants.OpenReferralStates, now).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByReferrerAndState 按状态统计推荐记录数量
func (r *GormReferralRepository) CountByReferrerAndState(referrerID uint, since *time.Time) ([]ReferralStateCount, error) {
	if referrerID == 0 {
		return []ReferralStateCount{}, nil
	}
	query := r.db.Model(&models.ReferralRecord{}).
		Select("state, COUNT(*) AS total").
		Where("referrer_id = ?", referrerID)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	var rows []ReferralStateCount
	if err := query.Group("state").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AppendEvent 追加推荐状态事件
func (r *GormReferralRepository) AppendEvent(event *models.ReferralEvent) error {
	return r.db.Create(event).Error
}

// ListEventsByRecord 查询记录的全部状态事件（按发生顺序）
func (r *GormReferralRepository) ListEventsByRecord(recordID uint) ([]models.ReferralEvent, error) {
	if recordID == 0 {
		return []models.ReferralEvent{}, nil
	}
	var rows []models.ReferralEvent
	if err := r.db.Where("referral_record_id = ?", recordID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
