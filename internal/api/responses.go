package api

type ErrorResponse struct {
	Error         string       `json:"error" example:"something went wrong"`
	Code          string       `json:"code,omitempty" example:"NOT_FOUND"`
	RequiredCents int64        `json:"requiredCents,omitempty" example:"700"`
	Details       []FieldError `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// WalletInfo is the wallet block embedded in purchase responses.
type WalletInfo struct {
	Enabled      bool   `json:"enabled"`
	Currency     string `json:"currency"`
	BalanceCents int64  `json:"balanceCents"`
}
