package constants

// 身份状态常量
const (
	IdentityStatusActive   = "active"
	IdentityStatusDisabled = "disabled"
)

// 身份角色常量
const (
	IdentityRoleClient = "client"
	IdentityRoleTutor  = "tutor"
	IdentityRoleAgent  = "agent"
)

// 推荐归因方式常量
const (
	AttributionMethodURL    = "url"
	AttributionMethodCookie = "cookie"
	AttributionMethodManual = "manual"
	AttributionMethodAPI    = "api"
)

// 推荐记录状态常量
const (
	ReferralStateReferred  = "referred"
	ReferralStateSignedUp  = "signed_up"
	ReferralStateConverted = "converted"
	ReferralStateExpired   = "expired"
)

// OpenReferralStates 未进入终态的推荐记录状态集合
var OpenReferralStates = []string{ReferralStateReferred, ReferralStateSignedUp}

// 佣金状态常量
const (
	CommissionStatePending   = "pending"
	CommissionStateAvailable = "available"
	CommissionStatePaid      = "paid"
	CommissionStateVoided    = "voided"
)

// 结算批次状态常量
const (
	PayoutBatchStateCreated   = "created"
	PayoutBatchStateSubmitted = "submitted"
	PayoutBatchStatePaid      = "paid"
	PayoutBatchStateFailed    = "failed"
)

// API 凭证状态常量
const (
	APIKeyStatusActive   = "active"
	APIKeyStatusDisabled = "disabled"
)

// API 凭证权限范围常量
const (
	ScopeReferralsRead   = "referrals:read"
	ScopeReferralsWrite  = "referrals:write"
	ScopeReferralsSearch = "referrals:search"
)

// KnownScopes 全部可授予的权限范围
var KnownScopes = []string{ScopeReferralsRead, ScopeReferralsWrite, ScopeReferralsSearch}

// 签名校验结果常量
const (
	SignatureOutcomeVerified = "verified"
	SignatureOutcomeRejected = "rejected"
)

// 外部交易事件常量
const (
	TransactionEventSettled  = "settled"
	TransactionEventReversed = "reversed"
)

// 外部身份事件常量
const (
	IdentityEventCreated = "created"
	IdentityEventRemoved = "removed"
)

// 队列常量
const (
	QueueDefault            = "default"
	TaskTransactionSettled  = "transaction:settled"
	TaskTransactionReversed = "transaction:reversed"
	TaskIdentityRemoved     = "identity:removed"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "rf"
)

// 币种常量
const (
	SiteCurrencyDefault = "GBP"
)

// 站点语言常量
const (
	LocaleEnUS = "en-US"
	LocaleEnGB = "en-GB"
)

// 支持的站点语言顺序（含回退顺序）
var SupportedLocales = []string{LocaleEnGB, LocaleEnUS}

// 推荐码常量
const (
	ReferralCodeLength   = 7
	ReferralCodeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ0123456789"
)

// 推荐 Cookie 常量
const (
	ReferralCookieName = "ref_attr"
)
