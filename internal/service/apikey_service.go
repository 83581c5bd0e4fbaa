package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

const apiKeyDisplayPrefix = "rk"

// APIKeyService 合作方 API 凭证管理与校验。
// 凭证格式 rk_<prefix>_<secret>，secret 仅创建时返回一次，库中只存 bcrypt 哈希。
type APIKeyService struct {
	repo repository.APIKeyRepository
}

// NewAPIKeyService 创建 API 凭证服务
func NewAPIKeyService(repo repository.APIKeyRepository) *APIKeyService {
	return &APIKeyService{repo: repo}
}

// Create 创建凭证，返回凭证模型与完整明文（仅此一次）。
func (s *APIKeyService) Create(name string, ownerID *uint, scopes []string) (*models.APIKey, string, error) {
	cleaned := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" {
			continue
		}
		if !scopeKnown(trimmed) {
			return nil, "", ErrScopeMissing
		}
		cleaned = append(cleaned, trimmed)
	}
	if len(cleaned) == 0 {
		return nil, "", ErrScopeMissing
	}

	prefix, err := randomHex(4)
	if err != nil {
		return nil, "", err
	}
	secret, err := randomHex(16)
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	key := &models.APIKey{
		Name:       strings.TrimSpace(name),
		Prefix:     prefix,
		SecretHash: string(hash),
		OwnerID:    ownerID,
		Scopes:     cleaned,
		Status:     constants.APIKeyStatusActive,
	}
	if err := s.repo.Create(key); err != nil {
		return nil, "", err
	}

	plaintext := fmt.Sprintf("%s_%s_%s", apiKeyDisplayPrefix, prefix, secret)
	logger.Infow("api_key_created", "key_id", key.ID, "prefix", prefix)
	return key, plaintext, nil
}

// Verify 校验请求携带的完整凭证，成功时刷新最近使用时间。
func (s *APIKeyService) Verify(presented string) (*models.APIKey, error) {
	parts := strings.Split(strings.TrimSpace(presented), "_")
	if len(parts) != 3 || parts[0] != apiKeyDisplayPrefix || parts[1] == "" || parts[2] == "" {
		return nil, ErrAPIKeyInvalid
	}
	key, err := s.repo.GetActiveByPrefix(parts[1])
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrAPIKeyInvalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(parts[2])); err != nil {
		return nil, ErrAPIKeyInvalid
	}
	if err := s.repo.TouchLastUsed(key.ID, time.Now()); err != nil {
		logger.Warnw("api_key_touch_failed", "key_id", key.ID, "error", err)
	}
	return key, nil
}

// RequireScope 凭证必须持有指定权限范围
func (s *APIKeyService) RequireScope(key *models.APIKey, scope string) error {
	if key == nil || !key.Scopes.Contains(scope) {
		return ErrScopeMissing
	}
	return nil
}

// Disable 停用凭证
func (s *APIKeyService) Disable(id uint) error {
	key, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if key == nil {
		return ErrNotFound
	}
	key.Status = constants.APIKeyStatusDisabled
	return s.repo.Update(key)
}

func scopeKnown(scope string) bool {
	for _, known := range constants.KnownScopes {
		if known == scope {
			return true
		}
	}
	return false
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
