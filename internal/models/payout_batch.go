package models

import "time"

// PayoutBatch 佣金结算批次
type PayoutBatch struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                          // 主键
	BatchNo        string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"batch_no"`         // 批次号
	RecipientID    uint       `gorm:"not null;index" json:"recipient_id"`                            // 受益人
	TotalAmount    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`     // 批次总额
	Currency       string     `gorm:"type:varchar(8);not null;default:'GBP'" json:"currency"`        // 币种
	EntryCount     int        `gorm:"not null;default:0" json:"entry_count"`                         // 条目数量
	State          string     `gorm:"type:varchar(16);not null;index" json:"state"`                  // 批次状态
	IdempotencyKey string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"idempotency_key"`  // 内容派生幂等键
	TransferRef    string     `gorm:"type:varchar(128);default:''" json:"transfer_ref"`              // 外部转账引用
	FailureCount   int        `gorm:"not null;default:0" json:"failure_count"`                       // 连续失败次数
	LastError      string     `gorm:"type:varchar(255);default:''" json:"last_error"`                // 最近失败原因
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`                                        // 提交转账时间
	PaidAt         *time.Time `json:"paid_at,omitempty"`                                             // 支付完成时间
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt      time.Time  `gorm:"index" json:"updated_at"`                                       // 更新时间

	Recipient Identity `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"` // 受益人信息
}

// TableName 指定表名
func (PayoutBatch) TableName() string {
	return "payout_batches"
}
