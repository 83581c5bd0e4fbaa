package public

import (
	"errors"
	"strings"
	"time"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/http/handlers/shared"
	"github.com/referral-next/internal/http/response"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/queue"
	"github.com/referral-next/internal/service"

	"github.com/gin-gonic/gin"
)

// SignupHookRequest 身份回调载荷
type SignupHookRequest struct {
	Event        string   `json:"event"` // created（默认）/ removed
	IdentityID   uint     `json:"identity_id"`
	Email        string   `json:"email"`
	DisplayName  string   `json:"display_name"`
	Roles        []string `json:"roles"`
	ReferralCode string   `json:"referral_code"` // URL 携带的推荐码
	ManualCode   string   `json:"manual_code"`   // 注册表单手工填写的推荐码
}

// HandleSignupHook 消费外部认证服务的身份回调：注册绑定与移除清理。
func (h *Handler) HandleSignupHook(c *gin.Context) {
	var req SignupHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Event)) {
	case "", constants.IdentityEventCreated:
	case constants.IdentityEventRemoved:
		h.handleIdentityRemoved(c, req.IdentityID)
		return
	default:
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	if strings.TrimSpace(req.Email) == "" {
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	cookieValue, _ := c.Cookie(h.Config.Referral.CookieName)
	identity, err := h.SignupService.HandleSignup(service.SignupInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Roles:       req.Roles,
		URLCode:     req.ReferralCode,
		CookieValue: cookieValue,
		ManualCode:  req.ManualCode,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBindingConflict):
			shared.RespondError(c, response.CodeConflict, "error.binding_conflict", nil)
		case errors.Is(err, service.ErrIdentityDisabled):
			shared.RespondError(c, response.CodeForbidden, "error.identity_disabled", nil)
		case errors.Is(err, service.ErrTransactionInvalid):
			shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		default:
			shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, gin.H{
		"identity_id":   identity.ID,
		"referral_code": identity.ReferralCode,
	})
}

// handleIdentityRemoved 身份移除事件：解除其作为推荐人的绑定并清理受益人改派。
func (h *Handler) handleIdentityRemoved(c *gin.Context, identityID uint) {
	if identityID == 0 {
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueIdentityRemoved(queue.IdentityRemovedPayload{IdentityID: identityID}); err != nil {
			shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
			return
		}
		response.SuccessWithMsg(c, "accepted", nil)
		return
	}
	if err := h.SignupService.HandleIdentityRemoved(identityID); err != nil {
		shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}
	response.Success(c, nil)
}

// TransactionHookRequest 交易回调载荷
type TransactionHookRequest struct {
	Event         string     `json:"event" binding:"required"` // settled / reversed
	TransactionID string     `json:"transaction_id" binding:"required"`
	PayerID       uint       `json:"payer_id"`
	ListingID     *uint      `json:"listing_id"`
	GrossAmount   string     `json:"gross_amount"`
	Currency      string     `json:"currency"`
	OccurredAt    *time.Time `json:"occurred_at"`
	Reason        string     `json:"reason"`
}

// HandleTransactionHook 消费支付协作方的交易回调，队列可用时异步入账。
func (h *Handler) HandleTransactionHook(c *gin.Context) {
	var req TransactionHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	occurredAt := time.Now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	switch strings.ToLower(strings.TrimSpace(req.Event)) {
	case constants.TransactionEventSettled:
		if h.QueueClient.Enabled() {
			err := h.QueueClient.EnqueueTransactionSettled(queue.TransactionSettledPayload{
				TransactionID: req.TransactionID,
				PayerID:       req.PayerID,
				ListingID:     req.ListingID,
				GrossAmount:   req.GrossAmount,
				Currency:      req.Currency,
				OccurredAt:    occurredAt,
			})
			if err != nil {
				shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
				return
			}
			response.SuccessWithMsg(c, "accepted", nil)
			return
		}
		amount, err := models.NewMoneyFromString(strings.TrimSpace(req.GrossAmount))
		if err != nil {
			shared.RespondError(c, response.CodeBadRequest, "error.transaction_invalid", err)
			return
		}
		if _, err := h.LedgerService.RecordSettled(service.TransactionInput{
			TransactionID: req.TransactionID,
			PayerID:       req.PayerID,
			ListingID:     req.ListingID,
			GrossAmount:   amount,
			Currency:      req.Currency,
			OccurredAt:    occurredAt,
		}); err != nil {
			if errors.Is(err, service.ErrTransactionInvalid) {
				shared.RespondError(c, response.CodeBadRequest, "error.transaction_invalid", nil)
				return
			}
			shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
			return
		}
		response.Success(c, nil)
	case constants.TransactionEventReversed:
		if h.QueueClient.Enabled() {
			err := h.QueueClient.EnqueueTransactionReversed(queue.TransactionReversedPayload{
				TransactionID: req.TransactionID,
				Reason:        req.Reason,
			})
			if err != nil {
				shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
				return
			}
			response.SuccessWithMsg(c, "accepted", nil)
			return
		}
		if err := h.LedgerService.Reverse(req.TransactionID, req.Reason); err != nil {
			shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
			return
		}
		response.Success(c, nil)
	default:
		shared.RespondError(c, response.CodeBadRequest, "error.transaction_invalid", nil)
	}
}

// HandleHealth 健康检查
func (h *Handler) HandleHealth(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
