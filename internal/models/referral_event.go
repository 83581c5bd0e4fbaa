package models

import "time"

// ReferralEvent 推荐状态流转事件（只追加，作为权威事实）
type ReferralEvent struct {
	ID               uint      `gorm:"primarykey" json:"id"`                           // 主键
	ReferralRecordID uint      `gorm:"not null;index" json:"referral_record_id"`       // 推荐记录
	FromState        string    `gorm:"type:varchar(16);not null" json:"from_state"`    // 流转前状态
	ToState          string    `gorm:"type:varchar(16);not null" json:"to_state"`      // 流转后状态
	Actor            string    `gorm:"type:varchar(32);default:''" json:"actor"`       // 触发方（webhook/sweep/partner）
	Note             string    `gorm:"type:varchar(255);default:''" json:"note"`       // 附注
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                        // 创建时间
}

// TableName 指定表名
func (ReferralEvent) TableName() string {
	return "referral_events"
}
