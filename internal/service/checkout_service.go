package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tillsync/internal/dto"
	"tillsync/internal/model"
	"tillsync/internal/repository"
	"tillsync/internal/sync"
)

// Syncer is the slice of the scheduler the checkout flow needs: connectivity
// observation, badge refresh, and a background nudge after an online sale.
type Syncer interface {
	Online() bool
	RefreshPendingCount(ctx context.Context) error
	TriggerSync(ctx context.Context, merchantID string) (sync.Result, error)
}

type CheckoutService interface {
	// IssueReceipt confirms a sale. It is synchronous and local-only: the
	// entry lands in the outbox with a fresh idempotency key and the sale
	// never fails because of sync trouble.
	IssueReceipt(ctx context.Context, req dto.IssueReceiptRequest) (*dto.IssueReceiptResponse, error)
}

type checkoutService struct {
	outbox repository.OutboxRepository
	syncer Syncer
}

func NewCheckoutService(outbox repository.OutboxRepository, syncer Syncer) CheckoutService {
	return &checkoutService{outbox: outbox, syncer: syncer}
}

var oneHundred = decimal.NewFromInt(100)

// computeLines freezes cart lines into receipt snapshots and computes the
// totals. Tax is computed and rounded per line, then summed — aggregate
// rounding would drift across lines.
func computeLines(items []dto.IssueReceiptItem) (lines []model.ReceiptItem, subtotal, tax int64, err error) {
	lines = make([]model.ReceiptItem, 0, len(items))
	for _, it := range items {
		if it.Qty < 1 {
			return nil, 0, 0, fmt.Errorf("checkout: line %q has qty %d", it.Name, it.Qty)
		}
		lineTotal := it.UnitPriceCents * int64(it.Qty)
		lineTax := decimal.NewFromInt(lineTotal).
			Mul(it.VatRate).
			Div(oneHundred).
			Round(0).
			IntPart()
		lines = append(lines, model.ReceiptItem{
			Name:           it.Name,
			Qty:            it.Qty,
			UnitPriceCents: it.UnitPriceCents,
			VatRate:        it.VatRate,
			LineTotalCents: lineTotal,
		})
		subtotal += lineTotal
		tax += lineTax
	}
	return lines, subtotal, tax, nil
}

func (s *checkoutService) IssueReceipt(ctx context.Context, req dto.IssueReceiptRequest) (*dto.IssueReceiptResponse, error) {
	if len(req.Items) == 0 {
		return nil, errors.New("checkout: empty cart")
	}

	lines, subtotal, tax, err := computeLines(req.Items)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	online := s.syncer.Online()
	rec := &model.OutboxReceipt{
		ClientReceiptID: uuid.NewString(),
		MerchantID:      req.MerchantID,
		IssuedAt:        time.Now().UTC(),
		Status:          model.ReceiptCompleted,
		PaymentMethod:   req.PaymentMethod,
		Currency:        currency,
		SubtotalCents:   subtotal,
		TaxCents:        tax,
		TotalCents:      subtotal + tax,
		CreatedOffline:  !online,
	}
	if err := rec.SetItems(lines); err != nil {
		return nil, fmt.Errorf("checkout: encode items: %w", err)
	}

	if err := s.outbox.Enqueue(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.syncer.RefreshPendingCount(ctx); err != nil {
		log.Error().Err(err).Msg("checkout: refresh pending count")
	}

	// Background nudge: when online the sale should reach the cloud right
	// away. A rejected trigger means a drain is already running and will
	// pick the entry up on its next pass.
	if online {
		go func() {
			if _, err := s.syncer.TriggerSync(context.Background(), req.MerchantID); err != nil &&
				!errors.Is(err, sync.ErrSyncInFlight) && !errors.Is(err, sync.ErrOffline) {
				log.Warn().Err(err).Msg("checkout: post-sale sync")
			}
		}()
	}

	return &dto.IssueReceiptResponse{
		ClientReceiptID: rec.ClientReceiptID,
		IssuedAt:        rec.IssuedAt,
		SyncStatus:      rec.SyncStatus,
		SubtotalCents:   rec.SubtotalCents,
		TaxCents:        rec.TaxCents,
		TotalCents:      rec.TotalCents,
		CreatedOffline:  rec.CreatedOffline,
	}, nil
}
