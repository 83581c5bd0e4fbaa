package i18n

import (
	"fmt"
	"strings"

	"github.com/referral-next/internal/constants"

	"github.com/gin-gonic/gin"
)

// messages 各语言消息目录（key 未命中时原样返回 key）
var messages = map[string]map[string]string{
	constants.LocaleEnGB: {
		"error.bad_request":            "invalid request",
		"error.unauthorized":           "unauthorized",
		"error.forbidden":              "forbidden",
		"error.not_found":              "not found",
		"error.internal":               "internal error",
		"error.save_failed":            "save failed",
		"error.fetch_failed":           "fetch failed",
		"error.rate_limited":           "too many requests, retry in %d seconds",
		"error.rate_limit_unavailable": "rate limiter unavailable",
		"error.jwt_secret_missing":     "auth secret not configured",
		"error.auth_header_missing":    "authorization header missing",
		"error.auth_header_invalid":    "authorization header invalid",
		"error.token_invalid":          "token invalid",
		"error.identity_disabled":      "account disabled",
		"error.api_key_invalid":        "api key invalid",
		"error.api_key_scope":          "api key lacks required scope",
		"error.webhook_secret_invalid": "webhook secret invalid",
		"error.referral_code_invalid":  "referral code invalid",
		"error.self_referral":          "self referral is not allowed",
		"error.referral_exists":        "an open referral already exists for this contact",
		"error.binding_conflict":       "account is already bound to a different referrer",
		"error.referral_terminal":      "referral is in a terminal state",
		"error.delegation_self":        "delegation target must differ from the listing owner",
		"error.transaction_invalid":    "transaction payload invalid",
	},
}

// ResolveLocale 解析请求语言（Accept-Language -> 支持列表，默认 en-GB）
func ResolveLocale(c *gin.Context) string {
	if c == nil {
		return constants.LocaleEnGB
	}
	header := strings.TrimSpace(c.GetHeader("Accept-Language"))
	if header == "" {
		return constants.LocaleEnGB
	}
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		for _, supported := range constants.SupportedLocales {
			if strings.EqualFold(tag, supported) {
				return supported
			}
		}
	}
	return constants.LocaleEnGB
}

// T 按语言取消息文案
func T(locale, key string) string {
	catalog, ok := messages[locale]
	if !ok {
		catalog = messages[constants.LocaleEnGB]
	}
	if msg, ok := catalog[key]; ok {
		return msg
	}
	if locale != constants.LocaleEnGB {
		if msg, ok := messages[constants.LocaleEnGB][key]; ok {
			return msg
		}
	}
	return key
}

// Sprintf 按语言取消息文案并格式化参数
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}
