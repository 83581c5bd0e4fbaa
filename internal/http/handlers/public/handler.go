package public

import "github.com/referral-next/internal/provider"

// Handler 公开接口处理器入口
// 说明：推荐链接与外部协作方 Webhook 使用该处理器。
type Handler struct {
	*provider.Container
}

// New 创建公开处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
