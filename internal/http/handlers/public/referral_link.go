package public

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/referral-next/internal/http/handlers/shared"
	"github.com/referral-next/internal/http/response"
	"github.com/referral-next/internal/service"

	"github.com/gin-gonic/gin"
)

// HandleReferralLink 处理推荐链接点击：记录点击、签发归因 Cookie、安全重定向。
func (h *Handler) HandleReferralLink(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	existingCookie, _ := c.Cookie(h.Config.Referral.CookieName)

	result, err := h.ReferralService.HandleLink(c.Request.Context(), code, existingCookie, c.ClientIP())
	if err != nil {
		if errors.Is(err, service.ErrCodeInvalid) {
			// 无效推荐码不签发 Cookie，直接送往默认落地页。
			c.Redirect(http.StatusFound, h.Config.Referral.DefaultRedirect)
			return
		}
		shared.RespondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	maxAge := h.Config.Referral.CookieTTLDays * 24 * 3600
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.Config.Referral.CookieName, result.CookieValue, maxAge, "/", "", false, true)

	c.Redirect(http.StatusFound, h.safeRedirect(c.Query("redirect")))
}

// safeRedirect 限制重定向目标：站内相对路径或白名单内主机。
func (h *Handler) safeRedirect(target string) string {
	fallback := h.Config.Referral.DefaultRedirect
	if fallback == "" {
		fallback = "/"
	}
	trimmed := strings.TrimSpace(target)
	if trimmed == "" {
		return fallback
	}
	if strings.HasPrefix(trimmed, "/") && !strings.HasPrefix(trimmed, "//") {
		return trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return fallback
	}
	for _, host := range h.Config.Referral.AllowedRedirectHosts {
		if strings.EqualFold(parsed.Host, host) {
			return trimmed
		}
	}
	return fallback
}
