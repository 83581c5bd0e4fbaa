package provider

import (
	"github.com/referral-next/internal/cache"
	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/payout"
	"github.com/referral-next/internal/queue"
	"github.com/referral-next/internal/repository"
	"github.com/referral-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	IdentityRepo       repository.IdentityRepository
	ReferralRepo       repository.ReferralRepository
	ListingRepo        repository.ListingRepository
	CommissionRepo     repository.CommissionRepository
	PayoutRepo         repository.PayoutRepository
	APIKeyRepo         repository.APIKeyRepository
	SignatureAuditRepo repository.SignatureAuditRepository

	// Services
	SignatureService   *service.SignatureService
	AttributionService *service.AttributionService
	ReferralService    *service.ReferralService
	SignupService      *service.SignupService
	LedgerService      *service.LedgerService
	SettlementService  *service.SettlementService
	ListingService     *service.ListingService
	APIKeyService      *service.APIKeyService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.IdentityRepo = repository.NewIdentityRepository(db)
	c.ReferralRepo = repository.NewReferralRepository(db)
	c.ListingRepo = repository.NewListingRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.PayoutRepo = repository.NewPayoutRepository(db)
	c.APIKeyRepo = repository.NewAPIKeyRepository(db)
	c.SignatureAuditRepo = repository.NewSignatureAuditRepository(db)
}

func (c *Container) initServices() {
	referralCfg := c.Config.Referral

	c.SignatureService = service.NewSignatureService(referralCfg.SigningSecret, c.SignatureAuditRepo)
	c.AttributionService = service.NewAttributionService(c.IdentityRepo, c.ReferralRepo, c.SignatureService)
	c.ReferralService = service.NewReferralService(referralCfg, c.IdentityRepo, c.ReferralRepo, c.SignatureService)
	c.SignupService = service.NewSignupService(referralCfg, c.IdentityRepo, c.ReferralRepo, c.ListingRepo, c.AttributionService, c.ReferralService)
	c.LedgerService = service.NewLedgerService(referralCfg, c.IdentityRepo, c.ReferralRepo, c.ListingRepo, c.CommissionRepo, c.ReferralService)
	c.SettlementService = service.NewSettlementService(referralCfg, c.ReferralRepo, c.CommissionRepo, c.PayoutRepo, payout.NewLogTransferrer(), c.ReferralService)
	c.ListingService = service.NewListingService(c.IdentityRepo, c.ListingRepo)
	c.APIKeyService = service.NewAPIKeyService(c.APIKeyRepo)
}
