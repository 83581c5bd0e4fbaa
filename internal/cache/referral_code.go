package cache

import (
	"context"
	"fmt"
	"time"
)

const referralCodeTTL = 5 * time.Minute

// ReferralCodeState 推荐码查询缓存（推荐链接是热点路径）
type ReferralCodeState struct {
	IdentityID uint   `json:"identity_id"`
	Status     string `json:"status"`
}

// GetReferralCodeState 读取推荐码缓存
func GetReferralCodeState(ctx context.Context, code string) (*ReferralCodeState, bool, error) {
	if code == "" {
		return nil, false, nil
	}
	var state ReferralCodeState
	hit, err := GetJSON(ctx, referralCodeKey(code), &state)
	if err != nil || !hit {
		return nil, false, err
	}
	return &state, true, nil
}

// SetReferralCodeState 写入推荐码缓存
func SetReferralCodeState(ctx context.Context, code string, state ReferralCodeState) error {
	if code == "" {
		return nil
	}
	return SetJSON(ctx, referralCodeKey(code), state, referralCodeTTL)
}

// DelReferralCodeState 删除推荐码缓存
func DelReferralCodeState(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	return Del(ctx, referralCodeKey(code))
}

func referralCodeKey(code string) string {
	return fmt.Sprintf("referral_code:%s", code)
}
