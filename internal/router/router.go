package router

import (
	"fmt"
	"strings"

	"github.com/referral-next/internal/cache"
	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/constants"
	memberhandlers "github.com/referral-next/internal/http/handlers/member"
	partnerhandlers "github.com/referral-next/internal/http/handlers/partner"
	publichandlers "github.com/referral-next/internal/http/handlers/public"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按公开/会员/合作方分组）
	publicHandler := publichandlers.New(c)
	memberHandler := memberhandlers.New(c)
	partnerHandler := partnerhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "rf"
	}
	redisClient := cache.Client()
	linkRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:link", redisPrefix),
		WindowSeconds: cfg.Security.LinkRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LinkRateLimit.MaxRequests,
		MessageKey:    "error.rate_limited",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 推荐链接入口（短路径 + 兼容路径）
	linkLimiter := RateLimitMiddleware(redisClient, linkRule, KeyByIPAndParam("code"))
	r.GET("/r/:code", linkLimiter, publicHandler.HandleReferralLink)
	r.GET("/referral/:code", linkLimiter, publicHandler.HandleReferralLink)

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 入站 Webhook（共享密钥鉴权）
		hooks := apiV1.Group("/hooks")
		{
			hooks.POST("/signup", WebhookSecretMiddleware(cfg.Webhook.SignupSecret), publicHandler.HandleSignupHook)
			hooks.POST("/transactions", WebhookSecretMiddleware(cfg.Webhook.TransactionSecret), publicHandler.HandleTransactionHook)
		}

		// 会员接口（外部签发的会话令牌）
		me := apiV1.Group("/me")
		me.Use(MemberJWTAuthMiddleware(cfg.AuthJWT.SecretKey, c.IdentityRepo))
		{
			me.GET("/referrals", memberHandler.ListReferrals)
			me.GET("/referrals/stats", memberHandler.ReferralStats)
			me.GET("/commissions", memberHandler.ListCommissions)
			me.GET("/payouts", memberHandler.ListPayoutBatches)
			me.PUT("/listings/:id/delegation", memberHandler.SetListingDelegation)
			me.DELETE("/listings/:id/delegation", memberHandler.ClearListingDelegation)
		}

		// 合作方接口（API Key + 权限范围）
		partner := apiV1.Group("/partner")
		partner.Use(APIKeyAuthMiddleware(c.APIKeyService))
		{
			partner.POST("/referrals", RequireScopeMiddleware(c.APIKeyService, constants.ScopeReferralsWrite), partnerHandler.CreateReferral)
			partner.GET("/referrals", RequireScopeMiddleware(c.APIKeyService, constants.ScopeReferralsSearch), partnerHandler.SearchReferrals)
			partner.GET("/stats", RequireScopeMiddleware(c.APIKeyService, constants.ScopeReferralsRead), partnerHandler.ReferrerStats)
		}
	}

	// 健康检查
	r.GET("/health", publicHandler.HandleHealth)

	return r
}
