package repository

import (
	"github.com/referral-next/internal/models"

	"gorm.io/gorm"
)

// SignatureAuditRepository 签名审计日志数据访问接口（只追加）
type SignatureAuditRepository interface {
	Append(entry *models.SignatureAuditLog) error
	CountByOutcome(outcome string) (int64, error)
}

// GormSignatureAuditRepository GORM 签名审计仓储
type GormSignatureAuditRepository struct {
	db *gorm.DB
}

// NewSignatureAuditRepository 创建签名审计仓储
func NewSignatureAuditRepository(db *gorm.DB) *GormSignatureAuditRepository {
	return &GormSignatureAuditRepository{db: db}
}

// Append 追加审计记录
func (r *GormSignatureAuditRepository) Append(entry *models.SignatureAuditLog) error {
	return r.db.Create(entry).Error
}

// CountByOutcome 按结果统计审计记录数量
func (r *GormSignatureAuditRepository) CountByOutcome(outcome string) (int64, error) {
	var total int64
	if err := r.db.Model(&models.SignatureAuditLog{}).
		Where("outcome = ?", outcome).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
