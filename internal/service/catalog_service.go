package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tillsync/internal/dto"
	"tillsync/internal/infra"
	"tillsync/internal/model"
	"tillsync/internal/repository"
	"tillsync/internal/sync"
)

// CatalogFetcher is the remote catalog service contract.
type CatalogFetcher interface {
	ListProducts(ctx context.Context, merchantID string, updatedSince *time.Time) ([]model.Product, error)
}

type CatalogService interface {
	// Refresh fetches the catalog from the cloud and updates the local
	// cache: wholesale replacement on the first fetch (or when forced),
	// watermark-based incremental merge afterwards.
	Refresh(ctx context.Context, merchantID string, full bool) (*dto.RefreshResponse, error)

	// List reads the cached catalog; works identically on- and offline.
	List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, error)
}

type catalogService struct {
	repo  repository.ProductRepository
	cloud CatalogFetcher
	cb    *infra.CircuitBreaker
	conn  infra.ConnectivityObserver
}

func NewCatalogService(repo repository.ProductRepository, cloud CatalogFetcher, cb *infra.CircuitBreaker, conn infra.ConnectivityObserver) CatalogService {
	return &catalogService{repo: repo, cloud: cloud, cb: cb, conn: conn}
}

func (s *catalogService) Refresh(ctx context.Context, merchantID string, full bool) (*dto.RefreshResponse, error) {
	if !s.conn.Online() {
		return nil, sync.ErrOffline
	}

	watermark, err := s.repo.LastProductSync(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("catalog: read watermark: %w", err)
	}
	wholesale := full || watermark == nil

	var updatedSince *time.Time
	if !wholesale {
		updatedSince = watermark
	}

	var products []model.Product
	// Routed through the breaker so background catalog polling probes a
	// struggling cloud instead of hammering it.
	cbErr := s.cb.Execute(func() error {
		var ferr error
		products, ferr = s.cloud.ListProducts(ctx, merchantID, updatedSince)
		return ferr
	})
	if cbErr != nil {
		return nil, fmt.Errorf("catalog: fetch: %w", cbErr)
	}

	syncedAt := time.Now().UTC()
	if wholesale {
		err = s.repo.ReplaceForMerchant(ctx, merchantID, products, syncedAt)
	} else {
		err = s.repo.UpsertBatch(ctx, merchantID, products, syncedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: store: %w", err)
	}

	log.Info().
		Str("merchant_id", merchantID).
		Int("count", len(products)).
		Bool("full", wholesale).
		Msg("catalog: refreshed")
	return &dto.RefreshResponse{Count: len(products), Full: wholesale, SyncedAt: syncedAt}, nil
}

func (s *catalogService) List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, error) {
	return s.repo.List(ctx, filter.MerchantID, filter.ActiveOnly, filter.Search)
}
