package partner

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/referral-next/internal/http/handlers/shared"
	"github.com/referral-next/internal/http/response"
	"github.com/referral-next/internal/repository"
	"github.com/referral-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateReferralRequest 合作方预创建推荐记录的载荷
type CreateReferralRequest struct {
	ReferralCode  string `json:"referral_code" binding:"required"`
	ReferredEmail string `json:"referred_email" binding:"required"`
	Note          string `json:"note"`
}

// CreateReferral 注册前按邮箱预登记推荐关系
func (h *Handler) CreateReferral(c *gin.Context) {
	var req CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	record, err := h.ReferralService.CreatePartner(service.CreatePartnerInput{
		ReferralCode:  req.ReferralCode,
		ReferredEmail: req.ReferredEmail,
		Note:          req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeInvalid):
			shared.RespondError(c, response.CodeBadRequest, "error.referral_code_invalid", nil)
		case errors.Is(err, service.ErrSelfReferral):
			shared.RespondError(c, response.CodeBadRequest, "error.self_referral", nil)
		case errors.Is(err, service.ErrReferralExists):
			shared.RespondError(c, response.CodeConflict, "error.referral_exists", nil)
		default:
			shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}
	response.Success(c, record)
}

// SearchReferrals 按过滤条件检索推荐记录
func (h *Handler) SearchReferrals(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)

	filter := repository.ReferralListFilter{
		Page:          page,
		PageSize:      pageSize,
		ReferredEmail: strings.TrimSpace(c.Query("referred_email")),
		State:         strings.TrimSpace(c.Query("state")),
		Method:        strings.TrimSpace(c.Query("method")),
	}
	if raw := strings.TrimSpace(c.Query("referrer_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return
		}
		filter.ReferrerID = uint(id)
	}
	if raw := strings.TrimSpace(c.Query("created_from")); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return
		}
		filter.CreatedFrom = &at
	}
	if raw := strings.TrimSpace(c.Query("created_to")); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return
		}
		filter.CreatedTo = &at
	}

	rows, total, err := h.ReferralService.Search(filter)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ReferrerStats 按推荐码查询推荐人的漏斗统计
func (h *Handler) ReferrerStats(c *gin.Context) {
	code := strings.TrimSpace(c.Query("referral_code"))
	if code == "" {
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	referrer, err := h.IdentityRepo.GetByReferralCode(code)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	if referrer == nil {
		shared.RespondError(c, response.CodeNotFound, "error.not_found", nil)
		return
	}

	lookbackDays, _ := strconv.Atoi(c.DefaultQuery("lookback_days", "0"))
	counts, err := h.ReferralService.StateCounts(referrer.ID, lookbackDays)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	response.Success(c, gin.H{
		"referrer_id":   referrer.ID,
		"referral_code": referrer.ReferralCode,
		"referrals":     counts,
	})
}
