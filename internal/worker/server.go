package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"invest-wallet/internal/consumers"
	"invest-wallet/internal/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Worker struct {
	Processor *consumers.CommissionProcessor
}

func NewWorker(processor *consumers.CommissionProcessor) *Worker {
	return &Worker{
		Processor: processor,
	}
}

func (w *Worker) HandleCommissionDistribute(ctx context.Context, t *asynq.Task) error {
	var p consumers.CommissionJobDTO
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return w.Processor.ProcessCommission(ctx, p)
}

func (w *Worker) HandlePayoutResult(ctx context.Context, t *asynq.Task) error {
	var p consumers.PayoutResultDTO
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return w.Processor.ProcessPayoutResult(ctx, p)
}

// NewServeMux routes every task type to its handler.
func NewServeMux(processor *consumers.CommissionProcessor) *asynq.ServeMux {
	worker := NewWorker(processor)
	mux := asynq.NewServeMux()

	mux.HandleFunc(TypeCommissionDistribute, worker.HandleCommissionDistribute)
	mux.HandleFunc(TypePayoutResult, worker.HandlePayoutResult)
	return mux
}

func StartWorker(redisOpt asynq.RedisClientOpt, processor *consumers.CommissionProcessor) error {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: logger.Log.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Log.Warn("Task failed",
					zap.String("type", task.Type()),
					zap.Int("retried", retried),
					zap.Int("maxRetry", maxRetry),
					zap.Error(err))
			}),
		},
	)

	if err := srv.Run(NewServeMux(processor)); err != nil {
		return fmt.Errorf("could not run worker: %w", err)
	}
	return nil
}
