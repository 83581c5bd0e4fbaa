package service

import "errors"

// 服务层业务错误，供处理器通过 errors.Is 映射响应码。
var (
	ErrNotFound            = errors.New("record not found")
	ErrIdentityDisabled    = errors.New("identity disabled")
	ErrCodeInvalid         = errors.New("referral code invalid")
	ErrSelfReferral        = errors.New("self referral not allowed")
	ErrReferralExists      = errors.New("open referral already exists")
	ErrBindingConflict     = errors.New("identity already bound to another referrer")
	ErrRecordTerminal      = errors.New("referral record in terminal state")
	ErrRecordStateInvalid  = errors.New("referral record state invalid for transition")
	ErrDelegationSelf      = errors.New("delegation cannot point to listing owner")
	ErrAPIKeyInvalid       = errors.New("api key invalid")
	ErrScopeMissing        = errors.New("api key scope missing")
	ErrTransactionInvalid  = errors.New("transaction payload invalid")
	ErrCommissionStateSkip = errors.New("commission state not eligible")
)
