package models

import (
	"time"

	"github.com/referral-next/internal/constants"
)

// ReferralRecord 推荐记录（state 列是 referral_events 的投影，可重建）
type ReferralRecord struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                   // 主键
	Ref           string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"ref"`       // 记录引用（签名 Cookie 中携带）
	ReferrerID    uint       `gorm:"not null;index" json:"referrer_id"`                      // 推荐人
	ReferredID    *uint      `gorm:"index" json:"referred_id,omitempty"`                     // 被推荐人（注册前为空）
	ReferredEmail string     `gorm:"type:varchar(255);default:'';index" json:"referred_email"` // 被推荐邮箱（注册前捕获）
	Method        string     `gorm:"type:varchar(16);not null" json:"method"`                // 归因方式
	State         string     `gorm:"type:varchar(16);not null;index" json:"state"`           // 当前状态
	SignedUpAt    *time.Time `json:"signed_up_at,omitempty"`                                 // 注册时间
	ConvertedAt   *time.Time `json:"converted_at,omitempty"`                                 // 转化时间
	ExpiredAt     *time.Time `json:"expired_at,omitempty"`                                   // 过期时间
	ExpiresAt     time.Time  `gorm:"index" json:"expires_at"`                                // 过期截止时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt     time.Time  `gorm:"index" json:"updated_at"`                                // 更新时间

	Referrer Identity  `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"` // 推荐人信息
	Referred *Identity `gorm:"foreignKey:ReferredID" json:"referred,omitempty"` // 被推荐人信息
}

// TableName 指定表名
func (ReferralRecord) TableName() string {
	return "referral_records"
}

// IsTerminal 判断记录是否已进入终态
func (r ReferralRecord) IsTerminal() bool {
	return r.State == constants.ReferralStateConverted || r.State == constants.ReferralStateExpired
}
