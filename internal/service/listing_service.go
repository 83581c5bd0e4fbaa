package service

import (
	"time"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"
)

// ListingService 服务条目的佣金受益人改派管理
type ListingService struct {
	identityRepo repository.IdentityRepository
	listingRepo  repository.ListingRepository
}

// NewListingService 创建服务条目服务
func NewListingService(identityRepo repository.IdentityRepository, listingRepo repository.ListingRepository) *ListingService {
	return &ListingService{
		identityRepo: identityRepo,
		listingRepo:  listingRepo,
	}
}

// SetDelegation 设置条目的佣金受益人改派。改派不可指向条目所有人本人。
func (s *ListingService) SetDelegation(ownerID, listingID, delegateID uint) (*models.Listing, error) {
	listing, err := s.listingRepo.GetByIDForOwner(listingID, ownerID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, ErrNotFound
	}
	if delegateID == listing.OwnerID {
		return nil, ErrDelegationSelf
	}
	delegate, err := s.identityRepo.GetByID(delegateID)
	if err != nil {
		return nil, err
	}
	if delegate == nil || delegate.Status != constants.IdentityStatusActive {
		return nil, ErrNotFound
	}

	now := time.Now()
	if _, err := s.listingRepo.SetDelegate(listing.ID, &delegateID, now); err != nil {
		return nil, err
	}
	listing.DelegateRecipientID = &delegateID
	listing.UpdatedAt = now
	logger.Infow("listing_delegation_set",
		"listing_id", listing.ID,
		"owner_id", ownerID,
		"delegate_id", delegateID,
	)
	return listing, nil
}

// ClearDelegation 清除条目的受益人改派
func (s *ListingService) ClearDelegation(ownerID, listingID uint) (*models.Listing, error) {
	listing, err := s.listingRepo.GetByIDForOwner(listingID, ownerID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, ErrNotFound
	}

	now := time.Now()
	if _, err := s.listingRepo.SetDelegate(listing.ID, nil, now); err != nil {
		return nil, err
	}
	listing.DelegateRecipientID = nil
	listing.UpdatedAt = now
	logger.Infow("listing_delegation_cleared",
		"listing_id", listing.ID,
		"owner_id", ownerID,
	)
	return listing, nil
}
