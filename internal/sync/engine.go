// Package sync drains the durable outbox against the merchant cloud with
// bounded retry and sequential exponential backoff, and schedules drains on
// connectivity transitions.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tillsync/internal/infra"
	"tillsync/internal/repository"
)

const (
	// MaxAttempts is the retry budget per entry; reaching it moves the entry
	// to the terminal FAILED state, surfaced for manual attention.
	MaxAttempts = 3

	// BaseDelay seeds the exponential backoff between failed submissions
	// within one drain pass (1s, 2s, 4s).
	BaseDelay = time.Second
)

// ReceiptSubmitter is the remote receipt service contract: idempotent on
// clientReceiptId, returning the original identity for a resubmitted key.
type ReceiptSubmitter interface {
	SubmitReceipt(ctx context.Context, payload infra.CreateReceiptPayload) (*infra.CreateReceiptResponse, error)
}

// Result carries advisory drain counts. Callers wanting ground truth should
// re-query the pending count afterwards.
type Result struct {
	Synced int
	Failed int
}

// Engine replays pending outbox entries exactly once against the cloud.
// It has no fatal error path for individual entries: every failure is either
// a bounded retry or a terminal FAILED status.
type Engine struct {
	outbox repository.OutboxRepository
	cloud  ReceiptSubmitter

	// sleep is injected by timing tests; production uses a ctx-aware wait.
	sleep func(ctx context.Context, d time.Duration)
}

func NewEngine(outbox repository.OutboxRepository, cloud ReceiptSubmitter) *Engine {
	return &Engine{
		outbox: outbox,
		cloud:  cloud,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// Drain processes a snapshot of the PENDING entries, strictly in storage
// order — entries enqueued mid-drain wait for the next pass, and no entry is
// ever dispatched in parallel. After each failed submission the whole pass
// blocks for the entry's backoff delay, deliberately throttling a burst
// against a struggling backend. merchantID "" drains every merchant.
func (e *Engine) Drain(ctx context.Context, merchantID string) (Result, error) {
	pending, err := e.outbox.ListPending(ctx, merchantID)
	if err != nil {
		return Result{}, fmt.Errorf("sync: list pending: %w", err)
	}

	var res Result
	for i := range pending {
		rec := &pending[i]

		if rec.SyncAttempts >= MaxAttempts {
			// Already exhausted — no network round-trip.
			if err := e.outbox.MarkFailed(ctx, rec.ClientReceiptID); err != nil {
				log.Error().Err(err).Str("client_receipt_id", rec.ClientReceiptID).
					Msg("sync: mark failed")
			}
			res.Failed++
			continue
		}

		items, err := rec.Items()
		if err != nil {
			// Undecodable row can never succeed remotely.
			log.Error().Err(err).Str("client_receipt_id", rec.ClientReceiptID).
				Msg("sync: corrupt items payload, marking failed")
			_ = e.outbox.MarkFailed(ctx, rec.ClientReceiptID)
			res.Failed++
			continue
		}

		resp, err := e.cloud.SubmitReceipt(ctx, infra.CreateReceiptPayload{
			MerchantID:      rec.MerchantID,
			ClientReceiptID: rec.ClientReceiptID,
			IssuedAt:        rec.IssuedAt,
			Status:          rec.Status,
			PaymentMethod:   rec.PaymentMethod,
			Currency:        rec.Currency,
			SubtotalCents:   rec.SubtotalCents,
			TaxCents:        rec.TaxCents,
			TotalCents:      rec.TotalCents,
			Items:           items,
			CreatedOffline:  rec.CreatedOffline,
		})
		if err != nil {
			attempts := rec.SyncAttempts + 1
			if uerr := e.outbox.IncrementAttempts(ctx, rec.ClientReceiptID); uerr != nil {
				log.Error().Err(uerr).Str("client_receipt_id", rec.ClientReceiptID).
					Msg("sync: increment attempts")
			}
			if attempts >= MaxAttempts {
				_ = e.outbox.MarkFailed(ctx, rec.ClientReceiptID)
				log.Error().Err(err).
					Str("client_receipt_id", rec.ClientReceiptID).
					Int("attempts", attempts).
					Msg("sync: retries exhausted, entry failed")
			} else {
				log.Warn().Err(err).
					Str("client_receipt_id", rec.ClientReceiptID).
					Int("attempts", attempts).
					Msg("sync: submission failed, will retry")
			}
			res.Failed++
			e.sleep(ctx, BaseDelay<<rec.SyncAttempts)
			continue
		}

		if err := e.outbox.MarkSynced(ctx, rec.ClientReceiptID, resp.Number); err != nil {
			log.Error().Err(err).Str("client_receipt_id", rec.ClientReceiptID).
				Msg("sync: mark synced")
		}
		res.Synced++
		log.Info().
			Str("client_receipt_id", rec.ClientReceiptID).
			Str("number", resp.Number).
			Msg("sync: receipt synced")
	}
	return res, nil
}
