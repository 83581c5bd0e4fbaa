package models

import "time"

// CommissionEntry 佣金台账条目（每笔结算交易最多一条）
type CommissionEntry struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                       // 主键
	TransactionID    string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"transaction_id"` // 外部交易号
	ReferralRecordID *uint      `gorm:"index" json:"referral_record_id,omitempty"`                  // 关联推荐记录
	PayerID          uint       `gorm:"not null;index" json:"payer_id"`                             // 付款身份
	RecipientID      uint       `gorm:"not null;index" json:"recipient_id"`                         // 佣金受益人
	ListingID        *uint      `gorm:"index" json:"listing_id,omitempty"`                          // 交易对应的服务条目
	GrossAmount      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"gross_amount"`  // 交易总额
	NetAmount        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"net_amount"`    // 平台费后净额
	CommissionAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"` // 佣金金额
	RatePercent      Money      `gorm:"type:decimal(10,2);not null;default:0" json:"rate_percent"`  // 佣金比例（百分比）
	Currency         string     `gorm:"type:varchar(8);not null;default:'GBP'" json:"currency"`     // 币种
	State            string     `gorm:"type:varchar(16);not null;index" json:"state"`               // 台账状态
	ClearsAt         *time.Time `gorm:"index" json:"clears_at,omitempty"`                           // 清算期到期时间
	AvailableAt      *time.Time `gorm:"index" json:"available_at,omitempty"`                        // 转可结算时间
	PaidAt           *time.Time `json:"paid_at,omitempty"`                                          // 支付时间
	PayoutBatchID    *uint      `gorm:"index" json:"payout_batch_id,omitempty"`                     // 所属结算批次
	VoidReason       string     `gorm:"type:varchar(255);default:''" json:"void_reason"`            // 作废原因
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                                    // 更新时间

	Recipient Identity     `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`   // 受益人信息
	Batch     *PayoutBatch `gorm:"foreignKey:PayoutBatchID" json:"batch,omitempty"`     // 结算批次
}

// TableName 指定表名
func (CommissionEntry) TableName() string {
	return "commission_entries"
}
