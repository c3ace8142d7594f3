package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"tillsync/internal/model"
)

// ErrDuplicateReceipt is returned when Enqueue is called with a
// clientReceiptId that already exists. Callers generate fresh UUIDs per
// sale, so hitting this is a programmer error, not a retry case.
var ErrDuplicateReceipt = errors.New("outbox: duplicate clientReceiptId")

// OutboxRepository is the typed contract over the durable outbox table.
// The sync engine and scheduler depend on this interface, not on the GORM
// implementation, enabling unit testing via in-memory stubs.
type OutboxRepository interface {
	// Enqueue inserts a new entry with SyncStatus PENDING and zero attempts.
	Enqueue(ctx context.Context, rec *model.OutboxReceipt) error

	// ListPending returns PENDING entries in storage (FIFO) order.
	// merchantID "" means all merchants.
	ListPending(ctx context.Context, merchantID string) ([]model.OutboxReceipt, error)

	// ListForDisplay returns PENDING and FAILED entries for a merchant,
	// sorted by issuance time descending (ties: insertion order).
	ListForDisplay(ctx context.Context, merchantID string) ([]model.OutboxReceipt, error)

	// PendingCount is an index-backed count of PENDING entries.
	PendingCount(ctx context.Context, merchantID string) (int64, error)

	// MarkSynced, MarkFailed and IncrementAttempts are idempotent single-row
	// updates. A missing row is a no-op, not an error (race with a prune).
	MarkSynced(ctx context.Context, clientReceiptID, number string) error
	MarkFailed(ctx context.Context, clientReceiptID string) error
	IncrementAttempts(ctx context.Context, clientReceiptID string) error
}

type outboxRepo struct{ db *gorm.DB }

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepo{db: db} }

func (r *outboxRepo) Enqueue(ctx context.Context, rec *model.OutboxReceipt) error {
	rec.SyncStatus = model.SyncPending
	rec.SyncAttempts = 0
	err := r.db.WithContext(ctx).Create(rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicateReceipt
		}
		return err
	}
	return nil
}

func (r *outboxRepo) ListPending(ctx context.Context, merchantID string) ([]model.OutboxReceipt, error) {
	var recs []model.OutboxReceipt
	q := r.db.WithContext(ctx).Where("sync_status = ?", model.SyncPending)
	if merchantID != "" {
		q = q.Where("merchant_id = ?", merchantID)
	}
	err := q.Order("created_at ASC").Find(&recs).Error
	return recs, err
}

func (r *outboxRepo) ListForDisplay(ctx context.Context, merchantID string) ([]model.OutboxReceipt, error) {
	var recs []model.OutboxReceipt
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND sync_status IN ?", merchantID, []string{model.SyncPending, model.SyncFailed}).
		Order("issued_at DESC, created_at ASC").
		Find(&recs).Error
	return recs, err
}

func (r *outboxRepo) PendingCount(ctx context.Context, merchantID string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.OutboxReceipt{}).
		Where("sync_status = ?", model.SyncPending)
	if merchantID != "" {
		q = q.Where("merchant_id = ?", merchantID)
	}
	err := q.Count(&count).Error
	return count, err
}

func (r *outboxRepo) MarkSynced(ctx context.Context, clientReceiptID, number string) error {
	updates := map[string]interface{}{"sync_status": model.SyncSynced}
	if number != "" {
		updates["number"] = number
	}
	return r.db.WithContext(ctx).Model(&model.OutboxReceipt{}).
		Where("client_receipt_id = ?", clientReceiptID).
		Updates(updates).Error
}

func (r *outboxRepo) MarkFailed(ctx context.Context, clientReceiptID string) error {
	return r.db.WithContext(ctx).Model(&model.OutboxReceipt{}).
		Where("client_receipt_id = ?", clientReceiptID).
		Update("sync_status", model.SyncFailed).Error
}

func (r *outboxRepo) IncrementAttempts(ctx context.Context, clientReceiptID string) error {
	return r.db.WithContext(ctx).Model(&model.OutboxReceipt{}).
		Where("client_receipt_id = ?", clientReceiptID).
		Update("sync_attempts", gorm.Expr("sync_attempts + 1")).Error
}
