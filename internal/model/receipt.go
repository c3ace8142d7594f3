package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Sync states of an outbox entry. SYNCED and FAILED are terminal;
// FAILED stays visible for manual intervention and is never resent.
const (
	SyncPending = "PENDING"
	SyncSynced  = "SYNCED"
	SyncFailed  = "FAILED"
)

// Business status of a receipt.
const (
	ReceiptCompleted = "COMPLETED"
	ReceiptVoided    = "VOIDED"
	ReceiptRefunded  = "REFUNDED"
)

// Accepted payment methods.
const (
	PayCash   = "CASH"
	PayCard   = "CARD"
	PayWallet = "WALLET"
	PaySplit  = "SPLIT"
)

// ReceiptItem is a line snapshot frozen at issuance time. Later catalog
// price changes never alter an issued receipt.
type ReceiptItem struct {
	Name           string          `json:"name" validate:"required"`
	Qty            int             `json:"qty" validate:"min=1"`
	UnitPriceCents int64           `json:"unitPriceCents" validate:"min=0"`
	VatRate        decimal.Decimal `json:"vatRate"`
	LineTotalCents int64           `json:"lineTotalCents" validate:"min=0"`
}

// OutboxReceipt is a locally persisted sale awaiting (or past) cloud
// confirmation. ClientReceiptID is generated once at issuance and is the
// idempotency key for every submission attempt.
type OutboxReceipt struct {
	ClientReceiptID string    `gorm:"type:text;primaryKey"`
	MerchantID      string    `gorm:"index:idx_outbox_merchant;index:idx_outbox_merchant_issued,priority:1;not null"`
	// Number is assigned by the cloud on first successful sync.
	Number         *string
	IssuedAt       time.Time `gorm:"index:idx_outbox_merchant_issued,priority:2;not null"`
	Status         string    `gorm:"type:varchar(20);not null"`
	SyncStatus     string    `gorm:"type:varchar(10);index:idx_outbox_sync_status;not null;default:'PENDING'"`
	PaymentMethod  string    `gorm:"type:varchar(10);not null"`
	Currency       string    `gorm:"type:varchar(3);not null"`
	SubtotalCents  int64     `gorm:"not null"`
	TaxCents       int64     `gorm:"not null"`
	TotalCents     int64     `gorm:"not null"`
	ItemsJSON      []byte    `gorm:"type:text;not null"`
	CreatedOffline bool      `gorm:"not null"`
	SyncAttempts   int       `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (OutboxReceipt) TableName() string { return "outbox_receipts" }

// Items decodes the frozen line snapshots.
func (r *OutboxReceipt) Items() ([]ReceiptItem, error) {
	var items []ReceiptItem
	if err := json.Unmarshal(r.ItemsJSON, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetItems encodes line snapshots into the stored JSON column.
func (r *OutboxReceipt) SetItems(items []ReceiptItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	r.ItemsJSON = data
	return nil
}
