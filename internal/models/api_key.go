package models

import (
	"time"

	"gorm.io/gorm"
)

// APIKey 合作方 API 凭证（权限为显式能力集合，不做动态角色判定）
type APIKey struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                  // 主键
	Name       string         `gorm:"type:varchar(64);not null" json:"name"`                 // 凭证名称
	Prefix     string         `gorm:"type:varchar(16);not null;uniqueIndex" json:"prefix"`   // 公开前缀（用于定位凭证）
	SecretHash string         `gorm:"type:varchar(128);not null" json:"-"`                   // 密钥哈希（bcrypt）
	OwnerID    *uint          `gorm:"index" json:"owner_id,omitempty"`                       // 所属中介身份
	Scopes     StringArray    `gorm:"type:text" json:"scopes"`                               // 授权范围
	Status     string         `gorm:"type:varchar(16);not null;default:'active'" json:"status"` // 凭证状态
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`                                // 最近使用时间
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                               // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间
}

// TableName 指定表名
func (APIKey) TableName() string {
	return "api_keys"
}
