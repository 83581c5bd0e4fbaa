package service

import (
	"strings"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"
)

// AttributionService 推荐归因解析。
// 来源优先级固定：URL 推荐码 > 已签名 Cookie > 手工填写推荐码；
// 第一个能解析出真实推荐人的来源胜出，解析到本人时整体按自然注册处理。
type AttributionService struct {
	identityRepo repository.IdentityRepository
	referralRepo repository.ReferralRepository
	signature    *SignatureService
}

// NewAttributionService 创建归因服务
func NewAttributionService(
	identityRepo repository.IdentityRepository,
	referralRepo repository.ReferralRepository,
	signature *SignatureService,
) *AttributionService {
	return &AttributionService{
		identityRepo: identityRepo,
		referralRepo: referralRepo,
		signature:    signature,
	}
}

// AttributionInput 注册时可用的归因信号
type AttributionInput struct {
	URLCode     string
	CookieValue string
	ManualCode  string
	ClientIP    string
}

// Attribution 归因结果。Record 仅在 Cookie 路径命中既有点击记录时非空。
type Attribution struct {
	Referrer *models.Identity
	Method   string
	Record   *models.ReferralRecord
}

// Resolve 解析归因。返回 nil 表示自然注册。
func (s *AttributionService) Resolve(input AttributionInput, candidateID uint, candidateEmail string) (*Attribution, error) {
	email := strings.ToLower(strings.TrimSpace(candidateEmail))

	if code := strings.TrimSpace(input.URLCode); code != "" {
		attr, err := s.resolveCode(code, constants.AttributionMethodURL)
		if err != nil {
			return nil, err
		}
		if attr != nil {
			return s.discardSelf(attr, candidateID, email), nil
		}
	}

	if cookie := strings.TrimSpace(input.CookieValue); cookie != "" {
		attr, err := s.resolveCookie(cookie, input.ClientIP)
		if err != nil {
			return nil, err
		}
		if attr != nil {
			return s.discardSelf(attr, candidateID, email), nil
		}
	}

	if code := strings.TrimSpace(input.ManualCode); code != "" {
		attr, err := s.resolveCode(code, constants.AttributionMethodManual)
		if err != nil {
			return nil, err
		}
		if attr != nil {
			return s.discardSelf(attr, candidateID, email), nil
		}
	}

	return nil, nil
}

// resolveCode 按推荐码解析推荐人，未知或停用的码视为无信号。
func (s *AttributionService) resolveCode(code, method string) (*Attribution, error) {
	referrer, err := s.identityRepo.GetByReferralCode(code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		logger.Debugw("attribution_code_unknown", "method", method)
		return nil, nil
	}
	if referrer.Status != constants.IdentityStatusActive {
		logger.Debugw("attribution_referrer_inactive", "method", method, "referrer_id", referrer.ID)
		return nil, nil
	}
	return &Attribution{Referrer: referrer, Method: method}, nil
}

// resolveCookie 校验 Cookie 签名并回查点击记录，签名无效按无信号处理。
func (s *AttributionService) resolveCookie(value, clientIP string) (*Attribution, error) {
	ref, ok := s.signature.DecodeCookie(value, clientIP)
	if !ok {
		return nil, nil
	}
	record, err := s.referralRepo.GetByRef(ref)
	if err != nil {
		return nil, err
	}
	if record == nil || record.IsTerminal() {
		return nil, nil
	}
	referrer, err := s.identityRepo.GetByID(record.ReferrerID)
	if err != nil {
		return nil, err
	}
	if referrer == nil || referrer.Status != constants.IdentityStatusActive {
		return nil, nil
	}
	return &Attribution{
		Referrer: referrer,
		Method:   constants.AttributionMethodCookie,
		Record:   record,
	}, nil
}

// discardSelf 解析到本人时整体降级为自然注册。
func (s *AttributionService) discardSelf(attr *Attribution, candidateID uint, candidateEmail string) *Attribution {
	if attr == nil || attr.Referrer == nil {
		return nil
	}
	if candidateID != 0 && attr.Referrer.ID == candidateID {
		logger.Infow("attribution_self_referral_discarded", "identity_id", candidateID, "method", attr.Method)
		return nil
	}
	if candidateEmail != "" && strings.EqualFold(attr.Referrer.Email, candidateEmail) {
		logger.Infow("attribution_self_referral_discarded", "email", candidateEmail, "method", attr.Method)
		return nil
	}
	return attr
}
