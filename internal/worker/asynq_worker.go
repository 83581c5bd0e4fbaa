package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/provider"
	"github.com/referral-next/internal/queue"
	"github.com/referral-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskTransactionSettled, c.handleTransactionSettled)
	mux.HandleFunc(queue.TaskTransactionReversed, c.handleTransactionReversed)
	mux.HandleFunc(queue.TaskIdentityRemoved, c.handleIdentityRemoved)
}

func (c *Consumer) handleTransactionSettled(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_transaction_settled_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.TransactionSettledPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_transaction_settled_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.TransactionID) == "" || payload.PayerID == 0 {
		logger.Debugw("worker_transaction_settled_skip_invalid_payload",
			"transaction_id", payload.TransactionID,
			"payer_id", payload.PayerID,
		)
		return nil
	}
	amount, err := models.NewMoneyFromString(strings.TrimSpace(payload.GrossAmount))
	if err != nil {
		logger.Warnw("worker_transaction_settled_skip_bad_amount",
			"transaction_id", payload.TransactionID,
			"gross_amount", payload.GrossAmount,
			"error", err,
		)
		return nil
	}
	if c.LedgerService == nil {
		logger.Warnw("worker_transaction_settled_skip_ledger_service_nil", "transaction_id", payload.TransactionID)
		return nil
	}
	_, err = c.LedgerService.RecordSettled(service.TransactionInput{
		TransactionID: payload.TransactionID,
		PayerID:       payload.PayerID,
		ListingID:     payload.ListingID,
		GrossAmount:   amount,
		Currency:      payload.Currency,
		OccurredAt:    payload.OccurredAt,
	})
	if err != nil {
		if errors.Is(err, service.ErrTransactionInvalid) {
			logger.Debugw("worker_transaction_settled_skip_invalid", "transaction_id", payload.TransactionID)
			return nil
		}
		logger.Warnw("worker_transaction_settled_failed", "transaction_id", payload.TransactionID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleIdentityRemoved(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_identity_removed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.IdentityRemovedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_identity_removed_unmarshal_failed", "error", err)
		return err
	}
	if payload.IdentityID == 0 {
		logger.Debugw("worker_identity_removed_skip_invalid_payload", "identity_id", payload.IdentityID)
		return nil
	}
	if c.SignupService == nil {
		logger.Warnw("worker_identity_removed_skip_signup_service_nil", "identity_id", payload.IdentityID)
		return nil
	}
	if err := c.SignupService.HandleIdentityRemoved(payload.IdentityID); err != nil {
		logger.Warnw("worker_identity_removed_failed", "identity_id", payload.IdentityID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleTransactionReversed(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_transaction_reversed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.TransactionReversedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_transaction_reversed_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.TransactionID) == "" {
		logger.Debugw("worker_transaction_reversed_skip_invalid_payload", "transaction_id", payload.TransactionID)
		return nil
	}
	if c.LedgerService == nil {
		logger.Warnw("worker_transaction_reversed_skip_ledger_service_nil", "transaction_id", payload.TransactionID)
		return nil
	}
	if err := c.LedgerService.Reverse(payload.TransactionID, payload.Reason); err != nil {
		logger.Warnw("worker_transaction_reversed_failed", "transaction_id", payload.TransactionID, "error", err)
		return err
	}
	return nil
}
