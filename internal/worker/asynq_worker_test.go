package worker

import (
	"context"
	"testing"

	"github.com/referral-next/internal/provider"
	"github.com/referral-next/internal/queue"

	"github.com/hibiken/asynq"
)

func TestHandleTransactionSettledMalformedPayload(t *testing.T) {
	consumer := &Consumer{Container: &provider.Container{}}
	task := asynq.NewTask(queue.TaskTransactionSettled, []byte("not-json"))

	if err := consumer.handleTransactionSettled(context.Background(), task); err == nil {
		t.Fatalf("malformed payload should be retried, got nil error")
	}
}

func TestHandleTransactionSettledSkipsInvalidPayload(t *testing.T) {
	consumer := &Consumer{Container: &provider.Container{}}

	// 缺 transaction_id 的载荷不可重试，直接丢弃。
	task := asynq.NewTask(queue.TaskTransactionSettled, []byte(`{"payer_id":7,"gross_amount":"10.00"}`))
	if err := consumer.handleTransactionSettled(context.Background(), task); err != nil {
		t.Fatalf("invalid payload should be dropped without retry, got %v", err)
	}

	// 金额非法同样丢弃。
	task = asynq.NewTask(queue.TaskTransactionSettled, []byte(`{"transaction_id":"tx-1","payer_id":7,"gross_amount":"abc"}`))
	if err := consumer.handleTransactionSettled(context.Background(), task); err != nil {
		t.Fatalf("bad amount should be dropped without retry, got %v", err)
	}
}

func TestHandleTransactionReversedSkipsInvalidPayload(t *testing.T) {
	consumer := &Consumer{Container: &provider.Container{}}

	task := asynq.NewTask(queue.TaskTransactionReversed, []byte(`{"reason":"chargeback"}`))
	if err := consumer.handleTransactionReversed(context.Background(), task); err != nil {
		t.Fatalf("missing transaction id should be dropped without retry, got %v", err)
	}
}

func TestHandleIdentityRemovedMalformedPayload(t *testing.T) {
	consumer := &Consumer{Container: &provider.Container{}}
	task := asynq.NewTask(queue.TaskIdentityRemoved, []byte("not-json"))

	if err := consumer.handleIdentityRemoved(context.Background(), task); err == nil {
		t.Fatalf("malformed payload should be retried, got nil error")
	}
}

func TestHandleIdentityRemovedSkipsInvalidPayload(t *testing.T) {
	consumer := &Consumer{Container: &provider.Container{}}

	// 缺 identity_id 的载荷不可重试，直接丢弃。
	task := asynq.NewTask(queue.TaskIdentityRemoved, []byte(`{}`))
	if err := consumer.handleIdentityRemoved(context.Background(), task); err != nil {
		t.Fatalf("invalid payload should be dropped without retry, got %v", err)
	}
}
