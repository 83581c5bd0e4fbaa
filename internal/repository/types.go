package repository

import (
	"time"

	"github.com/referral-next/internal/models"
)

// ReferralListFilter 查询推荐记录列表的过滤条件
type ReferralListFilter struct {
	Page          int
	PageSize      int
	ReferrerID    uint
	ReferredID    uint
	ReferredEmail string
	State         string
	Method        string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// CommissionListFilter 查询佣金条目列表的过滤条件
type CommissionListFilter struct {
	Page          int
	PageSize      int
	RecipientID   uint
	PayerID       uint
	TransactionID string
	State         string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// PayoutBatchListFilter 查询结算批次列表的过滤条件
type PayoutBatchListFilter struct {
	Page        int
	PageSize    int
	RecipientID uint
	State       string
}

// ReferralStateCount 按状态聚合的推荐记录数量
type ReferralStateCount struct {
	State string `gorm:"column:state"`
	Total int64  `gorm:"column:total"`
}

// CommissionRecipientSum 受益人可结算余额汇总行
type CommissionRecipientSum struct {
	RecipientID uint         `gorm:"column:recipient_id"`
	Total       models.Money `gorm:"column:total"`
	EntryCount  int64        `gorm:"column:entry_count"`
}
