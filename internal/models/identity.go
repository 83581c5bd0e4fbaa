package models

import (
	"time"

	"gorm.io/gorm"
)

// Identity 平台账号（客户/导师/中介，单账号可叠加角色）
type Identity struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                      // 主键
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`                         // 邮箱
	DisplayName  string         `gorm:"default:''" json:"display_name"`                            // 昵称
	ReferralCode string         `gorm:"type:varchar(16);not null;uniqueIndex" json:"referral_code"` // 推荐码（大小写敏感）
	ReferredByID *uint          `gorm:"index" json:"referred_by_id,omitempty"`                     // 绑定的推荐人（最多写入一次）
	Roles        StringArray    `gorm:"type:text" json:"roles"`                                    // 角色列表
	Status       string         `gorm:"default:'active'" json:"status"`                            // 账号状态
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	ReferredBy *Identity `gorm:"foreignKey:ReferredByID" json:"referred_by,omitempty"` // 推荐人信息
}

// TableName 指定表名
func (Identity) TableName() string {
	return "identities"
}
