package service

import "github.com/golang-jwt/jwt/v5"

// MemberClaims 会员会话令牌载荷（令牌由外部认证服务签发，本服务只校验）
type MemberClaims struct {
	IdentityID uint   `json:"identity_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}
