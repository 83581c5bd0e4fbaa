package payout

import (
	"context"
	"fmt"

	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
)

// Transferrer 佣金转账接口，生产环境由支付通道实现。
type Transferrer interface {
	// Transfer 向受益人发起转账，成功时返回外部转账引用。
	// idempotencyKey 由批次内容派生，重试携带同一键，通道侧据此去重。
	Transfer(ctx context.Context, recipientID uint, amount models.Money, currency, idempotencyKey string) (string, error)
}

// LogTransferrer 开发环境转账实现：仅记录日志并返回本地引用。
type LogTransferrer struct{}

// NewLogTransferrer 创建日志转账器
func NewLogTransferrer() *LogTransferrer {
	return &LogTransferrer{}
}

// Transfer 记录转账意图并返回本地引用
func (t *LogTransferrer) Transfer(ctx context.Context, recipientID uint, amount models.Money, currency, idempotencyKey string) (string, error) {
	logger.Infow("payout_transfer_simulated",
		"recipient_id", recipientID,
		"amount", amount.String(),
		"currency", currency,
		"idempotency_key", idempotencyKey,
	)
	return fmt.Sprintf("local-%s", idempotencyKey), nil
}
