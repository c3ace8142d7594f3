package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"tillsync/internal/model"
)

// IssueReceiptItem is one cart line as submitted by the UI shell. Unit price
// and VAT rate were captured when the line was added, so a catalog price
// change mid-sale does not alter the open cart.
type IssueReceiptItem struct {
	Name           string          `json:"name" validate:"required"`
	Qty            int             `json:"qty" validate:"min=1"`
	UnitPriceCents int64           `json:"unitPriceCents" validate:"min=0"`
	VatRate        decimal.Decimal `json:"vatRate"`
}

// IssueReceiptRequest confirms a sale. Issuance is synchronous and
// local-only: it always succeeds regardless of connectivity.
type IssueReceiptRequest struct {
	MerchantID    string             `json:"merchantId" validate:"required"`
	PaymentMethod string             `json:"paymentMethod" validate:"required,oneof=CASH CARD WALLET SPLIT"`
	Currency      string             `json:"currency"`
	Items         []IssueReceiptItem `json:"items" validate:"required,min=1,dive"`
}

// IssueReceiptResponse reports the durable identity and computed totals of
// the enqueued sale.
type IssueReceiptResponse struct {
	ClientReceiptID string    `json:"clientReceiptId"`
	IssuedAt        time.Time `json:"issuedAt"`
	SyncStatus      string    `json:"syncStatus"`
	SubtotalCents   int64     `json:"subtotalCents"`
	TaxCents        int64     `json:"taxCents"`
	TotalCents      int64     `json:"totalCents"`
	CreatedOffline  bool      `json:"createdOffline"`
}

// ReceiptView is one row of the reconciled history: either an authoritative
// remote record (SyncStatus empty) or a local not-yet-synced entry.
type ReceiptView struct {
	ID              string              `json:"id"`
	ClientReceiptID string              `json:"clientReceiptId"`
	MerchantID      string              `json:"merchantId"`
	Number          *string             `json:"number,omitempty"`
	IssuedAt        time.Time           `json:"issuedAt"`
	Status          string              `json:"status"`
	SyncStatus      string              `json:"syncStatus,omitempty"`
	PaymentMethod   string              `json:"paymentMethod"`
	Currency        string              `json:"currency"`
	SubtotalCents   int64               `json:"subtotalCents"`
	TaxCents        int64               `json:"taxCents"`
	TotalCents      int64               `json:"totalCents"`
	Items           []model.ReceiptItem `json:"items"`
	CreatedOffline  bool                `json:"createdOffline"`
	SyncAttempts    int                 `json:"syncAttempts,omitempty"`
}

// HistoryFilter narrows the reconciled history listing.
type HistoryFilter struct {
	Status  string
	Payment string
}

// SyncStatusResponse is the scheduler state exposed to the UI badge.
type SyncStatusResponse struct {
	PendingCount int64  `json:"pendingCount"`
	IsSyncing    bool   `json:"isSyncing"`
	Online       bool   `json:"online"`
	LastError    string `json:"lastSyncError,omitempty"`
}

// SyncTriggerResponse reports advisory drain counts; callers should re-query
// pendingCount for ground truth.
type SyncTriggerResponse struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}
