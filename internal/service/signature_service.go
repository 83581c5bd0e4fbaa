package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"
)

// SignatureService 归因载荷签名服务。
// 校验失败不阻断请求，调用方按无归因处理；每次校验结果写入审计日志。
type SignatureService struct {
	secret    []byte
	auditRepo repository.SignatureAuditRepository
}

// NewSignatureService 创建签名服务
func NewSignatureService(secret string, auditRepo repository.SignatureAuditRepository) *SignatureService {
	return &SignatureService{
		secret:    []byte(secret),
		auditRepo: auditRepo,
	}
}

// Sign 计算载荷的 HMAC-SHA256 签名（base64url 编码）
func (s *SignatureService) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify 恒定时间校验签名并写入审计日志
func (s *SignatureService) Verify(method, payload, signature, clientIP string) bool {
	expected := s.Sign(payload)
	ok := hmac.Equal([]byte(expected), []byte(signature))

	outcome := constants.SignatureOutcomeVerified
	if !ok {
		outcome = constants.SignatureOutcomeRejected
	}
	s.audit(method, payload, outcome, clientIP)
	return ok
}

// EncodeCookie 组装带签名的 Cookie 值（payload.signature）
func (s *SignatureService) EncodeCookie(payload string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + s.Sign(encoded)
}

// DecodeCookie 解析并校验 Cookie 值。签名无效或格式损坏时返回 ok=false，按无归因处理。
func (s *SignatureService) DecodeCookie(value, clientIP string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	parts := strings.SplitN(trimmed, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		s.audit(constants.AttributionMethodCookie, trimmed, constants.SignatureOutcomeRejected, clientIP)
		return "", false
	}
	if !s.Verify(constants.AttributionMethodCookie, parts[0], parts[1], clientIP) {
		return "", false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		s.audit(constants.AttributionMethodCookie, trimmed, constants.SignatureOutcomeRejected, clientIP)
		return "", false
	}
	return string(decoded), true
}

// audit 审计写入失败只记日志，不影响请求路径。
func (s *SignatureService) audit(method, payload, outcome, clientIP string) {
	if s.auditRepo == nil {
		return
	}
	entry := &models.SignatureAuditLog{
		Method:      method,
		Fingerprint: payloadFingerprint(payload),
		Outcome:     outcome,
		ClientIP:    clientIP,
		CreatedAt:   time.Now(),
	}
	if err := s.auditRepo.Append(entry); err != nil {
		logger.Warnw("signature_audit_write_failed",
			"method", method,
			"outcome", outcome,
			"error", err,
		)
	}
}

// payloadFingerprint 载荷指纹：SHA-256 前 16 字节的十六进制，不落原文。
func payloadFingerprint(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}
