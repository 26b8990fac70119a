package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"invest-wallet/internal/consumers"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeCommissionDistribute = "commission:distribute"
	TypePayoutResult         = "withdrawal:payout-result"
)

const commissionMaxRetry = 10

// Task Creators

// NewCommissionDistributeTask builds a task whose id is derived from the
// deposit, so the same deposit is never queued twice at the same time.
func NewCommissionDistributeTask(payload consumers.CommissionJobDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCommissionDistribute, data,
		asynq.TaskID(fmt.Sprintf("commission:%d", payload.TransactionId)),
		asynq.Queue("critical"),
		asynq.MaxRetry(commissionMaxRetry),
	), nil
}

// NewPayoutResultTask is keyed by withdrawal, so a provider that reports the
// same payout twice only settles it once.
func NewPayoutResultTask(payload consumers.PayoutResultDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePayoutResult, data,
		asynq.TaskID(fmt.Sprintf("payout:%d", payload.WithdrawalId)),
		asynq.Queue("default"),
	), nil
}

// Enqueuer is the part of *asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqQueue hands settled deposits to the worker.
type AsynqQueue struct {
	Client Enqueuer
}

func NewAsynqQueue(client Enqueuer) *AsynqQueue {
	return &AsynqQueue{Client: client}
}

func (q *AsynqQueue) EnqueueCommission(ctx context.Context, transactionId int) error {
	task, err := NewCommissionDistributeTask(consumers.CommissionJobDTO{TransactionId: transactionId})
	if err != nil {
		return err
	}
	if _, err := q.Client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue commission for transaction %d: %w", transactionId, err)
	}
	return nil
}

func (q *AsynqQueue) EnqueuePayoutResult(ctx context.Context, payload consumers.PayoutResultDTO) error {
	task, err := NewPayoutResultTask(payload)
	if err != nil {
		return err
	}
	if _, err := q.Client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue payout result for withdrawal %d: %w", payload.WithdrawalId, err)
	}
	return nil
}
