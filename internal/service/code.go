package service

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/referral-next/internal/constants"

	"github.com/google/uuid"
)

func generateReferralCode() (string, error) {
	var builder strings.Builder
	builder.Grow(constants.ReferralCodeLength)
	max := big.NewInt(int64(len(constants.ReferralCodeAlphabet)))
	for i := 0; i < constants.ReferralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(constants.ReferralCodeAlphabet[n.Int64()])
	}
	return builder.String(), nil
}

// generateRecordRef 生成推荐记录引用（写入签名 Cookie 的不透明值）
func generateRecordRef() string {
	return uuid.NewString()
}

// generateBatchNo 生成结算批次号
func generateBatchNo() string {
	return "PAY-" + uuid.NewString()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
