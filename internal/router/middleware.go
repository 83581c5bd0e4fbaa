package router

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/http/response"
	"github.com/referral-next/internal/i18n"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"
	"github.com/referral-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"
const apiKeyHeader = "X-Api-Key"
const apiKeyContextKey = "api_key"
const webhookSecretHeader = "X-Webhook-Secret"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			apiKeyHeader,
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// MemberJWTAuthMiddleware 会员令牌鉴权中间件。令牌由外部认证服务签发，
// 这里只做签名校验与身份状态检查。
func MemberJWTAuthMiddleware(secretKey string, identityRepo repository.IdentityRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretKey == "" {
			msg := i18n.T(i18n.ResolveLocale(c), "error.jwt_secret_missing")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		if identityRepo == nil {
			msg := i18n.T(i18n.ResolveLocale(c), "error.token_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			msg := i18n.T(i18n.ResolveLocale(c), "error.auth_header_missing")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			msg := i18n.T(i18n.ResolveLocale(c), "error.auth_header_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		tokenString := parts[1]
		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		claims := &service.MemberClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid || claims.IdentityID == 0 {
			msg := i18n.T(i18n.ResolveLocale(c), "error.token_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		identity, err := identityRepo.GetByID(claims.IdentityID)
		if err != nil || identity == nil {
			msg := i18n.T(i18n.ResolveLocale(c), "error.token_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		if identity.Status != constants.IdentityStatusActive {
			msg := i18n.T(i18n.ResolveLocale(c), "error.identity_disabled")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		c.Set("identity_id", claims.IdentityID)
		c.Set("identity_email", claims.Email)
		c.Next()
	}
}

// APIKeyAuthMiddleware 合作方 API Key 鉴权中间件
func APIKeyAuthMiddleware(apiKeyService *service.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKeyService == nil {
			msg := i18n.T(i18n.ResolveLocale(c), "error.api_key_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		presented := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if presented == "" {
			msg := i18n.T(i18n.ResolveLocale(c), "error.auth_header_missing")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		key, err := apiKeyService.Verify(presented)
		if err != nil {
			msg := i18n.T(i18n.ResolveLocale(c), "error.api_key_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		c.Set(apiKeyContextKey, key)
		c.Next()
	}
}

// RequireScopeMiddleware 校验已鉴权 API Key 是否携带指定权限范围
func RequireScopeMiddleware(apiKeyService *service.APIKeyService, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(apiKeyContextKey)
		if !exists {
			msg := i18n.T(i18n.ResolveLocale(c), "error.api_key_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		key, ok := value.(*models.APIKey)
		if !ok || key == nil {
			msg := i18n.T(i18n.ResolveLocale(c), "error.api_key_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		if err := apiKeyService.RequireScope(key, scope); err != nil {
			if errors.Is(err, service.ErrScopeMissing) {
				msg := i18n.T(i18n.ResolveLocale(c), "error.api_key_scope")
				response.Forbidden(c, msg)
				c.Abort()
				return
			}
			msg := i18n.T(i18n.ResolveLocale(c), "error.api_key_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		c.Next()
	}
}

// WebhookSecretMiddleware 入站 Webhook 共享密钥校验（常数时间比较）
func WebhookSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			// 未配置密钥时放行，便于本地联调。
			c.Next()
			return
		}
		presented := strings.TrimSpace(c.GetHeader(webhookSecretHeader))
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			msg := i18n.T(i18n.ResolveLocale(c), "error.webhook_secret_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		c.Next()
	}
}
