package partner

import "github.com/referral-next/internal/provider"

// Handler 合作方接口处理器入口（API Key 鉴权）
type Handler struct {
	*provider.Container
}

// New 创建合作方处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
