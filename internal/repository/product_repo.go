package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tillsync/internal/model"
)

// ProductRepository manages the local read-only catalog cache.
type ProductRepository interface {
	// ReplaceForMerchant atomically swaps the merchant's entire cached
	// catalog and advances the refresh watermark. A partial refresh is
	// never observable.
	ReplaceForMerchant(ctx context.Context, merchantID string, products []model.Product, syncedAt time.Time) error

	// UpsertBatch merges an incremental (updatedSince) fetch into the cache
	// and advances the watermark, in one transaction.
	UpsertBatch(ctx context.Context, merchantID string, products []model.Product, syncedAt time.Time) error

	// List returns cached products for a merchant, optionally only active
	// ones, optionally filtered by a case-insensitive name/SKU search.
	List(ctx context.Context, merchantID string, activeOnly bool, search string) ([]model.Product, error)

	// LastProductSync returns the merchant's refresh watermark, nil if the
	// catalog was never fetched.
	LastProductSync(ctx context.Context, merchantID string) (*time.Time, error)
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) ReplaceForMerchant(ctx context.Context, merchantID string, products []model.Product, syncedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("merchant_id = ?", merchantID).Delete(&model.Product{}).Error; err != nil {
			return err
		}
		if len(products) > 0 {
			if err := tx.Create(&products).Error; err != nil {
				return err
			}
		}
		return setWatermark(tx, merchantID, syncedAt)
	})
}

func (r *productRepo) UpsertBatch(ctx context.Context, merchantID string, products []model.Product, syncedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(products) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&products).Error; err != nil {
				return err
			}
		}
		return setWatermark(tx, merchantID, syncedAt)
	})
}

func setWatermark(tx *gorm.DB, merchantID string, syncedAt time.Time) error {
	meta := model.SyncMeta{MerchantID: merchantID, LastProductSync: &syncedAt}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "merchant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_product_sync", "updated_at"}),
	}).Create(&meta).Error
}

func (r *productRepo) List(ctx context.Context, merchantID string, activeOnly bool, search string) ([]model.Product, error) {
	var products []model.Product
	q := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("name LIKE ? OR sku LIKE ?", like, like)
	}
	err := q.Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) LastProductSync(ctx context.Context, merchantID string) (*time.Time, error) {
	var meta model.SyncMeta
	err := r.db.WithContext(ctx).First(&meta, "merchant_id = ?", merchantID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return meta.LastProductSync, nil
}
