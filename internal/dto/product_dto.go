package dto

import "time"

// ProductFilter narrows the cached catalog listing.
type ProductFilter struct {
	MerchantID string `form:"merchantId" validate:"required"`
	Search     string `form:"search"`
	ActiveOnly bool   `form:"activeOnly"`
}

// RefreshRequest asks for an online catalog refresh.
type RefreshRequest struct {
	MerchantID string `json:"merchantId" validate:"required"`
	// Full forces a wholesale replacement even when a watermark exists.
	Full bool `json:"full"`
}

// RefreshResponse reports the outcome of a catalog refresh.
type RefreshResponse struct {
	Count    int       `json:"count"`
	Full     bool      `json:"full"`
	SyncedAt time.Time `json:"syncedAt"`
}
