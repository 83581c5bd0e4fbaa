package queue

import (
	"encoding/json"
	"time"

	"github.com/referral-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskTransactionSettled 结算交易入账任务
	TaskTransactionSettled = constants.TaskTransactionSettled
	// TaskTransactionReversed 交易冲正任务
	TaskTransactionReversed = constants.TaskTransactionReversed
	// TaskIdentityRemoved 身份移除清理任务
	TaskIdentityRemoved = constants.TaskIdentityRemoved
)

// TransactionSettledPayload 结算交易入账任务载荷
type TransactionSettledPayload struct {
	TransactionID string    `json:"transaction_id"`
	PayerID       uint      `json:"payer_id"`
	ListingID     *uint     `json:"listing_id,omitempty"`
	GrossAmount   string    `json:"gross_amount"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// TransactionReversedPayload 交易冲正任务载荷
type TransactionReversedPayload struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// NewTransactionSettledTask 创建结算入账任务
func NewTransactionSettledTask(payload TransactionSettledPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTransactionSettled, body), nil
}

// NewTransactionReversedTask 创建交易冲正任务
func NewTransactionReversedTask(payload TransactionReversedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTransactionReversed, body), nil
}

// IdentityRemovedPayload 身份移除清理任务载荷
type IdentityRemovedPayload struct {
	IdentityID uint `json:"identity_id"`
}

// NewIdentityRemovedTask 创建身份移除清理任务
func NewIdentityRemovedTask(payload IdentityRemovedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdentityRemoved, body), nil
}
