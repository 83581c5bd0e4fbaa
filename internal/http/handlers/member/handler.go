package member

import "github.com/referral-next/internal/provider"

// Handler 会员接口处理器入口（JWT 鉴权）
type Handler struct {
	*provider.Container
}

// New 创建会员处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
