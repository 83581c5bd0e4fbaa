package member

import (
	"strconv"
	"strings"

	"github.com/referral-next/internal/http/handlers/shared"
	"github.com/referral-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListReferrals 查询当前会员的推荐记录列表
func (h *Handler) ListReferrals(c *gin.Context) {
	identityID, ok := shared.GetContextUintWithKeys(c, "identity_id", "error.bad_request", "error.internal")
	if !ok {
		return
	}

	page, pageSize := shared.ParsePagination(c)
	state := strings.TrimSpace(c.Query("state"))

	rows, total, err := h.ReferralService.ListForReferrer(identityID, page, pageSize, state)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ReferralStats 当前会员的推荐与佣金统计
func (h *Handler) ReferralStats(c *gin.Context) {
	identityID, ok := shared.GetContextUintWithKeys(c, "identity_id", "error.bad_request", "error.internal")
	if !ok {
		return
	}

	lookbackDays, _ := strconv.Atoi(c.DefaultQuery("lookback_days", "0"))
	counts, err := h.ReferralService.StateCounts(identityID, lookbackDays)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	sums, err := h.LedgerService.SumsForRecipient(identityID, lookbackDays)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	commission := gin.H{}
	for state, total := range sums {
		commission[state] = total
	}
	response.Success(c, gin.H{
		"referrals":  counts,
		"commission": commission,
	})
}

// ListCommissions 查询当前会员名下的佣金条目
func (h *Handler) ListCommissions(c *gin.Context) {
	identityID, ok := shared.GetContextUintWithKeys(c, "identity_id", "error.bad_request", "error.internal")
	if !ok {
		return
	}

	page, pageSize := shared.ParsePagination(c)
	state := strings.TrimSpace(c.Query("state"))

	rows, total, err := h.LedgerService.ListForRecipient(identityID, page, pageSize, state)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ListPayoutBatches 查询当前会员的结算批次
func (h *Handler) ListPayoutBatches(c *gin.Context) {
	identityID, ok := shared.GetContextUintWithKeys(c, "identity_id", "error.bad_request", "error.internal")
	if !ok {
		return
	}

	page, pageSize := shared.ParsePagination(c)

	rows, total, err := h.SettlementService.ListBatchesForRecipient(identityID, page, pageSize)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}
