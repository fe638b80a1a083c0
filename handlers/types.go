// SPDX-License-Identifier: GPL-3.0-only

package handlers

// swagger:model SignupRequest
type SignupRequest struct {
	// User's email address
	// required: true
	Email string `json:"email" example:"user@example.com"`
	// User's password
	// required: true
	Password string `json:"password" example:"MySecretPassword@123"`
	// Optional display name
	DisplayName string `json:"display_name" example:"Jane Doe"`
}

// swagger:model LoginRequest
type LoginRequest struct {
	// User's email address
	Email string `json:"email" example:"user@example.com"`
	// User's password
	Password string `json:"password" example:"MySecretPassword@123"`
}

// swagger:model AuthResponse
type AuthResponse struct {
	// Authentication session token
	// Should be used in the Authorization header as a Bearer token.
	SessionToken string `json:"session_token" example:"sample_session_token"`
	// Account the token belongs to
	Account AccountDetails `json:"account"`
	// Message indicating successful operation
	Message string `json:"message" example:"Operation successful"`
}

// swagger:model GenericResponse
type GenericResponse struct {
	Message string `json:"message" example:"Operation successful"`
}

// swagger:model AccountDetails
type AccountDetails struct {
	ID          uint   `json:"id" example:"1"`
	Email       string `json:"email" example:"user@example.com"`
	DisplayName string `json:"display_name" example:"Jane Doe"`
	// Current plan: free, pro or advanced
	Plan           string `json:"plan" example:"pro"`
	CreditBalance  int64  `json:"credit_balance" example:"100"`
	TotalCallsEver int64  `json:"total_calls_ever" example:"42"`
	// Masked license key; use the reveal endpoint for the full key
	LicenseKey *string `json:"license_key,omitempty" example:"SL-…3F9A"`
	PlanExpiry *string `json:"plan_expiry,omitempty" example:"2026-01-01T00:00:00Z"`
	CreatedAt  string  `json:"created_at" example:"2025-10-01T12:00:00Z"`
}

// swagger:model AccountResponse
type AccountResponse struct {
	Account AccountDetails `json:"account"`
	Message string         `json:"message" example:"Account retrieved successfully"`
}

// swagger:model UpdateAccountRequest
type UpdateAccountRequest struct {
	DisplayName string `json:"display_name" example:"Jane Doe"`
}

// swagger:model UsageEventDetails
type UsageEventDetails struct {
	ID       string `json:"id" example:"3b1f6c0e-8a45-4c55-9d2e-0d6f1f0b5a11"`
	Endpoint string `json:"endpoint" example:"/v1/transcribe"`
	// Positive values consume credits, negative values add credits
	CreditsDelta int64  `json:"credits_delta" example:"1"`
	CreatedAt    string `json:"created_at" example:"2025-10-01T12:00:00Z"`
}

// swagger:model StatsResponse
type StatsResponse struct {
	Plan           string              `json:"plan" example:"pro"`
	CreditBalance  int64               `json:"credit_balance" example:"97"`
	TotalCallsEver int64               `json:"total_calls_ever" example:"3"`
	PlanExpiry     *string             `json:"plan_expiry,omitempty" example:"2026-01-01T00:00:00Z"`
	DaysRemaining  *int                `json:"days_remaining,omitempty" example:"29"`
	LicenseIssued  bool                `json:"license_issued" example:"true"`
	RecentUsage    []UsageEventDetails `json:"recent_usage"`
	Message        string              `json:"message" example:"Stats retrieved successfully"`
}

// swagger:model PlanOption
type PlanOption struct {
	Name     string `json:"name" example:"pro"`
	Price    uint   `json:"price" example:"49900"`
	Currency string `json:"currency" example:"INR"`
	// Credits granted when the plan starts
	Credits        int64    `json:"credits" example:"100"`
	DurationInDays *uint    `json:"duration_in_days,omitempty" example:"30"`
	Recommended    bool     `json:"recommended" example:"true"`
	Features       []string `json:"features"`
}

// swagger:model CreditPackageOption
type CreditPackageOption struct {
	Code     string `json:"code" example:"credits_500"`
	Credits  int64  `json:"credits" example:"500"`
	Price    uint   `json:"price" example:"400000"`
	Currency string `json:"currency" example:"INR"`
}

// swagger:model GetPlansResponse
type GetPlansResponse struct {
	Plans          []PlanOption          `json:"plans"`
	CreditPackages []CreditPackageOption `json:"credit_packages"`
	Message        string                `json:"message" example:"Plans retrieved successfully"`
}

// swagger:model LicenseResponse
type LicenseResponse struct {
	LicenseKey string `json:"license_key" example:"SL-M3K9Q2ZA-4F1D0C2B9E8A7D6C5B4A39281706F5E4"`
	Message    string `json:"message" example:"License key issued successfully"`
}

// swagger:model ValidateLicenseRequest
type ValidateLicenseRequest struct {
	LicenseKey   string `json:"license_key" example:"SL-M3K9Q2ZA-4F1D0C2B9E8A7D6C5B4A39281706F5E4"`
	HardwareHash string `json:"hardware_hash" example:"a9f0e61a137d86aa9db53465e0801612"`
}

// swagger:model ValidateLicenseResponse
type ValidateLicenseResponse struct {
	Valid         bool   `json:"valid" example:"true"`
	APICallsLeft  *int64 `json:"api_calls_left,omitempty" example:"99"`
	DaysRemaining *int   `json:"days_remaining,omitempty" example:"29"`
	Message       string `json:"message,omitempty" example:"License expired"`
}

// swagger:model RecordUsageRequest
type RecordUsageRequest struct {
	Endpoint    string `json:"endpoint" example:"/v1/transcribe"`
	CreditsUsed int64  `json:"credits_used" example:"1"`
}

// swagger:model RecordUsageResponse
type RecordUsageResponse struct {
	NewBalance int64  `json:"new_balance" example:"96"`
	TotalCalls int64  `json:"total_calls" example:"4"`
	Message    string `json:"message" example:"Usage recorded successfully"`
}

// swagger:model UsageHistoryResponse
type UsageHistoryResponse struct {
	Data    []UsageEventDetails `json:"data"`
	Message string              `json:"message" example:"Usage history retrieved successfully"`
}

// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	// Either "plan" or "topup"
	Kind string `json:"kind" example:"plan"`
	// Plan to buy when kind is "plan"
	Plan string `json:"plan,omitempty" example:"pro"`
	// Credit package to buy when kind is "topup"
	PackageCode string `json:"package_code,omitempty" example:"credits_500"`
}

// swagger:model CreateOrderResponse
type CreateOrderResponse struct {
	OrderID  string `json:"order_id" example:"order_NZ1a2b3c4d5e6f"`
	Amount   uint   `json:"amount" example:"49900"`
	Currency string `json:"currency" example:"INR"`
	// Public key the checkout widget is opened with
	KeyID   string `json:"key_id" example:"rzp_test_1234567890"`
	Credits int64  `json:"credits" example:"100"`
	Message string `json:"message" example:"Order created successfully"`
}

// swagger:model VerifyTopUpRequest
type VerifyTopUpRequest struct {
	// Credits the client expects to receive; must match the order when set
	Credits   int64  `json:"credits" example:"500"`
	OrderID   string `json:"order_id" example:"order_NZ1a2b3c4d5e6f"`
	PaymentID string `json:"payment_id" example:"pay_NZ1a2b3c4d5e6f"`
	Signature string `json:"signature" example:"5d41402abc4b2a76b9719d911017c592"`
}

// swagger:model VerifyTopUpResponse
type VerifyTopUpResponse struct {
	NewBalance   int64  `json:"new_balance" example:"600"`
	AddedCredits int64  `json:"added_credits" example:"500"`
	Message      string `json:"message" example:"Credits added successfully"`
}

// swagger:model VerifyPlanRequest
type VerifyPlanRequest struct {
	Plan      string `json:"plan" example:"pro"`
	OrderID   string `json:"order_id" example:"order_NZ1a2b3c4d5e6f"`
	PaymentID string `json:"payment_id" example:"pay_NZ1a2b3c4d5e6f"`
	Signature string `json:"signature" example:"5d41402abc4b2a76b9719d911017c592"`
}

// swagger:model VerifyPlanResponse
type VerifyPlanResponse struct {
	Plan          string  `json:"plan" example:"pro"`
	CreditBalance int64   `json:"credit_balance" example:"100"`
	PlanExpiry    *string `json:"plan_expiry,omitempty" example:"2026-01-01T00:00:00Z"`
	Message       string  `json:"message" example:"Plan upgraded successfully"`
}

// swagger:model CreateCheckoutSessionRequest
type CreateCheckoutSessionRequest struct {
	Plan       string `json:"plan" example:"pro"`
	SuccessURL string `json:"success_url" example:"https://silently.ai/dashboard?checkout=success"`
	CancelURL  string `json:"cancel_url" example:"https://silently.ai/pricing"`
}

// swagger:model CheckoutSessionResponse
type CheckoutSessionResponse struct {
	SessionID string `json:"session_id" example:"cs_test_a1b2c3"`
	// Hosted checkout page to redirect the browser to
	URL     string `json:"url" example:"https://checkout.stripe.com/c/pay/cs_test_a1b2c3"`
	Message string `json:"message" example:"Checkout session created successfully"`
}

// swagger:model PortalSessionResponse
type PortalSessionResponse struct {
	URL     string `json:"url" example:"https://billing.stripe.com/p/session/test_a1b2c3"`
	Message string `json:"message" example:"Billing portal session created successfully"`
}

// swagger:model SubscriptionResponse
type SubscriptionResponse struct {
	ID            uint    `json:"id" example:"1"`
	Provider      string  `json:"provider" example:"razorpay"`
	Plan          string  `json:"plan" example:"pro"`
	Status        string  `json:"status" example:"active"`
	StartedAt     string  `json:"started_at" example:"2025-10-01T12:00:00Z"`
	ExpiresAt     *string `json:"expires_at,omitempty" example:"2025-10-31T12:00:00Z"`
	DaysRemaining *int    `json:"days_remaining,omitempty" example:"29"`
	Message       string  `json:"message" example:"Subscription retrieved successfully"`
}

// swagger:model PaginationDetails
type PaginationDetails struct {
	Page       int   `json:"page" example:"1"`
	PageSize   int   `json:"page_size" example:"10"`
	Total      int64 `json:"total" example:"100"`
	TotalPages int   `json:"total_pages" example:"10"`
}

// swagger:model SessionDetails
type SessionDetails struct {
	ID         uint    `json:"id" example:"1"`
	IsCurrent  bool    `json:"is_current" example:"true"`
	IsExpired  bool    `json:"is_expired" example:"false"`
	LastUsedAt *string `json:"last_used_at,omitempty" example:"2025-10-01T12:00:00Z"`
	IPAddress  *string `json:"ip_address,omitempty" example:"203.0.113.7"`
	UserAgent  *string `json:"user_agent,omitempty" example:"Mozilla/5.0"`
	CreatedAt  string  `json:"created_at" example:"2025-10-01T12:00:00Z"`
}

// swagger:model SessionListResponse
type SessionListResponse struct {
	Data       []SessionDetails  `json:"data"`
	Pagination PaginationDetails `json:"pagination"`
	Message    string            `json:"message" example:"Sessions retrieved successfully"`
}

// swagger:model DeleteAllSessionsResponse
type DeleteAllSessionsResponse struct {
	DeletedCount int    `json:"deleted_count" example:"3"`
	Message      string `json:"message" example:"All other sessions deleted successfully"`
}

// swagger:model WebhookResponse
type WebhookResponse struct {
	Received bool `json:"received" example:"true"`
}

// swagger:model HealthResponse
type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Database string `json:"database" example:"ok"`
}
