package service

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"tillsync/internal/dto"
	"tillsync/internal/infra"
	"tillsync/internal/model"
	"tillsync/internal/repository"
)

// ReceiptLister is the remote receipt history contract.
type ReceiptLister interface {
	ListReceipts(ctx context.Context, merchantID string, q infra.ReceiptQuery) ([]infra.RemoteReceipt, error)
}

type HistoryService interface {
	// List produces the reconciled receipt history: authoritative remote
	// records plus local PENDING/FAILED entries not yet reflected remotely.
	// Offline, the remote fetch is skipped and the view is local-only.
	List(ctx context.Context, merchantID string, filter dto.HistoryFilter) ([]dto.ReceiptView, error)
}

type historyService struct {
	outbox repository.OutboxRepository
	cloud  ReceiptLister
	conn   infra.ConnectivityObserver
}

func NewHistoryService(outbox repository.OutboxRepository, cloud ReceiptLister, conn infra.ConnectivityObserver) HistoryService {
	return &historyService{outbox: outbox, cloud: cloud, conn: conn}
}

func (s *historyService) List(ctx context.Context, merchantID string, filter dto.HistoryFilter) ([]dto.ReceiptView, error) {
	var remote []infra.RemoteReceipt
	if s.conn.Online() {
		var err error
		remote, err = s.cloud.ListReceipts(ctx, merchantID, infra.ReceiptQuery{
			Status:  filter.Status,
			Payment: filter.Payment,
		})
		if err != nil {
			// Degrade to local-only rather than failing the view; the
			// connectivity prober will flip the signal shortly.
			log.Warn().Err(err).Str("merchant_id", merchantID).
				Msg("history: remote fetch failed, showing local entries only")
			remote = nil
		}
	}

	local, err := s.outbox.ListForDisplay(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	// When the same sale exists on both sides the remote record wins: it
	// carries the authoritative number and status.
	seen := make(map[string]struct{}, len(remote))
	views := make([]dto.ReceiptView, 0, len(remote)+len(local))
	for _, r := range remote {
		key := r.ClientReceiptID
		if key == "" {
			key = r.ID
		}
		seen[key] = struct{}{}
		views = append(views, remoteView(r))
	}
	for i := range local {
		rec := &local[i]
		if _, dup := seen[rec.ClientReceiptID]; dup {
			continue
		}
		v, verr := localView(rec)
		if verr != nil {
			log.Error().Err(verr).Str("client_receipt_id", rec.ClientReceiptID).
				Msg("history: skipping undecodable local entry")
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		if filter.Payment != "" && v.PaymentMethod != filter.Payment {
			continue
		}
		views = append(views, v)
	}

	// Stable sort: ties on issuedAt keep insertion order, so a local entry
	// created later still lists after an equal-timestamp remote record.
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].IssuedAt.After(views[j].IssuedAt)
	})
	return views, nil
}

func remoteView(r infra.RemoteReceipt) dto.ReceiptView {
	var number *string
	if r.Number != "" {
		n := r.Number
		number = &n
	}
	return dto.ReceiptView{
		ID:              r.ID,
		ClientReceiptID: r.ClientReceiptID,
		MerchantID:      r.MerchantID,
		Number:          number,
		IssuedAt:        r.IssuedAt,
		Status:          r.Status,
		PaymentMethod:   r.PaymentMethod,
		Currency:        r.Currency,
		SubtotalCents:   r.SubtotalCents,
		TaxCents:        r.TaxCents,
		TotalCents:      r.TotalCents,
		Items:           r.Items,
		CreatedOffline:  r.CreatedOffline,
	}
}

func localView(rec *model.OutboxReceipt) (dto.ReceiptView, error) {
	items, err := rec.Items()
	if err != nil {
		return dto.ReceiptView{}, err
	}
	return dto.ReceiptView{
		ID:              rec.ClientReceiptID,
		ClientReceiptID: rec.ClientReceiptID,
		MerchantID:      rec.MerchantID,
		Number:          rec.Number,
		IssuedAt:        rec.IssuedAt,
		Status:          rec.Status,
		SyncStatus:      rec.SyncStatus,
		PaymentMethod:   rec.PaymentMethod,
		Currency:        rec.Currency,
		SubtotalCents:   rec.SubtotalCents,
		TaxCents:        rec.TaxCents,
		TotalCents:      rec.TotalCents,
		Items:           items,
		CreatedOffline:  rec.CreatedOffline,
		SyncAttempts:    rec.SyncAttempts,
	}, nil
}
