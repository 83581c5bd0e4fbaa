package worker

import (
	"context"
	"errors"
	"time"

	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	settlementSweepInterval = time.Minute
)

// Service 异步队列与结算巡检服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.SettlementService != nil {
		go s.runSettlementSweepLoop(ctx)
		go s.runPayoutLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runSettlementSweepLoop 周期执行推荐过期与佣金清算巡检。
func (s *Service) runSettlementSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.SettlementService == nil {
		return
	}
	runOnce := func() {
		now := time.Now()
		if expired, err := s.consumer.SettlementService.ExpireDueReferrals(now); err != nil {
			logger.Warnw("worker_expiry_sweep_failed", "error", err)
		} else if expired > 0 {
			logger.Infow("worker_expiry_sweep_done", "expired", expired)
		}
		if released, err := s.consumer.SettlementService.ReleaseClearedCommissions(now); err != nil {
			logger.Warnw("worker_clearing_sweep_failed", "error", err)
		} else if released > 0 {
			logger.Infow("worker_clearing_sweep_done", "released", released)
		}
	}
	runOnce()

	ticker := time.NewTicker(settlementSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// runPayoutLoop 按配置间隔执行结算批次。
func (s *Service) runPayoutLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.SettlementService == nil {
		return
	}
	intervalHours := s.consumer.Config.Referral.PayoutIntervalHours
	if intervalHours <= 0 {
		intervalHours = 168
	}
	interval := time.Duration(intervalHours) * time.Hour

	runOnce := func() {
		batches, err := s.consumer.SettlementService.RunPayouts(ctx, time.Now())
		if err != nil {
			logger.Warnw("worker_payout_sweep_failed", "error", err)
			return
		}
		if batches > 0 {
			logger.Infow("worker_payout_sweep_done", "batches", batches)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
