package models

import (
	"time"

	"gorm.io/gorm"
)

// Listing 服务条目（仅承载佣金受益人改派，目录管理由外部系统负责）
type Listing struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                          // 主键
	OwnerID             uint           `gorm:"not null;index" json:"owner_id"`                // 条目所有人
	Title               string         `gorm:"type:varchar(255);default:''" json:"title"`     // 标题
	DelegateRecipientID *uint          `gorm:"index" json:"delegate_recipient_id,omitempty"`  // 佣金受益人改派（不可指向所有人）
	IsActive            bool           `gorm:"default:true" json:"is_active"`                 // 是否生效
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                       // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                // 软删除时间

	Owner             Identity  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`                        // 所有人信息
	DelegateRecipient *Identity `gorm:"foreignKey:DelegateRecipientID" json:"delegate_recipient,omitempty"` // 改派受益人信息
}

// TableName 指定表名
func (Listing) TableName() string {
	return "listings"
}
