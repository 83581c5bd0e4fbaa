package member

import (
	"errors"
	"strconv"

	"github.com/referral-next/internal/http/handlers/shared"
	"github.com/referral-next/internal/http/response"
	"github.com/referral-next/internal/service"

	"github.com/gin-gonic/gin"
)

// SetDelegationRequest 设置受益人改派的载荷
type SetDelegationRequest struct {
	DelegateID uint `json:"delegate_id" binding:"required"`
}

// SetListingDelegation 设置条目的佣金受益人改派
func (h *Handler) SetListingDelegation(c *gin.Context) {
	identityID, ok := shared.GetContextUintWithKeys(c, "identity_id", "error.bad_request", "error.internal")
	if !ok {
		return
	}
	listingID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || listingID == 0 {
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	var req SetDelegationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	listing, err := h.ListingService.SetDelegation(identityID, uint(listingID), req.DelegateID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDelegationSelf):
			shared.RespondError(c, response.CodeBadRequest, "error.delegation_self", nil)
		case errors.Is(err, service.ErrNotFound):
			shared.RespondError(c, response.CodeNotFound, "error.not_found", nil)
		default:
			shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}
	response.Success(c, listing)
}

// ClearListingDelegation 清除条目的受益人改派
func (h *Handler) ClearListingDelegation(c *gin.Context) {
	identityID, ok := shared.GetContextUintWithKeys(c, "identity_id", "error.bad_request", "error.internal")
	if !ok {
		return
	}
	listingID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || listingID == 0 {
		shared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	listing, err := h.ListingService.ClearDelegation(identityID, uint(listingID))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			shared.RespondError(c, response.CodeNotFound, "error.not_found", nil)
			return
		}
		shared.RespondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}
	response.Success(c, listing)
}
