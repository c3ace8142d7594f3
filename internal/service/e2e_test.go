package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/dto"
	"tillsync/internal/infra"
	"tillsync/internal/model"
	"tillsync/internal/repository"
	"tillsync/internal/sync"
)

// edgeConn is a hand-driven connectivity observer with real edge semantics.
type edgeConn struct {
	mu     stdsync.Mutex
	online bool
	subs   []func(online bool)
}

func (c *edgeConn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *edgeConn) Subscribe(fn func(online bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *edgeConn) SetOnline(online bool) {
	c.mu.Lock()
	if c.online == online {
		c.mu.Unlock()
		return
	}
	c.online = online
	subs := append([]func(bool){}, c.subs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

// cloudStub is an idempotent in-memory receipt service behind httptest.
type cloudStub struct {
	mu          stdsync.Mutex
	byClientID  map[string]infra.RemoteReceipt
	order       []string
	submissions int
	seq         int
}

func newCloudStub() *cloudStub {
	return &cloudStub{byClientID: make(map[string]infra.RemoteReceipt)}
}

func (c *cloudStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/receipts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var p infra.CreateReceiptPayload
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			c.mu.Lock()
			c.submissions++
			rec, dup := c.byClientID[p.ClientReceiptID]
			if !dup {
				c.seq++
				rec = infra.RemoteReceipt{
					ID:              "srv-" + p.ClientReceiptID,
					ClientReceiptID: p.ClientReceiptID,
					MerchantID:      p.MerchantID,
					Number:          "R-" + strconv.Itoa(c.seq),
					IssuedAt:        p.IssuedAt,
					Status:          p.Status,
					PaymentMethod:   p.PaymentMethod,
					Currency:        p.Currency,
					SubtotalCents:   p.SubtotalCents,
					TaxCents:        p.TaxCents,
					TotalCents:      p.TotalCents,
					Items:           p.Items,
					CreatedOffline:  p.CreatedOffline,
				}
				c.byClientID[p.ClientReceiptID] = rec
				c.order = append(c.order, p.ClientReceiptID)
			}
			c.mu.Unlock()
			if dup {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusCreated)
			}
			_ = json.NewEncoder(w).Encode(infra.CreateReceiptResponse{
				ID:              rec.ID,
				Number:          rec.Number,
				ClientReceiptID: rec.ClientReceiptID,
			})
		case http.MethodGet:
			c.mu.Lock()
			receipts := make([]infra.RemoteReceipt, 0, len(c.order))
			for _, id := range c.order {
				receipts = append(receipts, c.byClientID[id])
			}
			c.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"receipts": receipts})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func (c *cloudStub) submissionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submissions
}

// TestOfflineSaleSyncsOnReconnect walks the whole offline-first flow: a sale
// confirmed while disconnected lands in the outbox, the connectivity edge
// triggers a drain, and the reconciled history shows the cloud-assigned
// number afterwards.
func TestOfflineSaleSyncsOnReconnect(t *testing.T) {
	stub := newCloudStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	db, err := infra.NewDatabase(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	outbox := repository.NewOutboxRepository(db)
	cloud := infra.NewCloudClient(srv.URL, 5*time.Second, nil)
	conn := &edgeConn{}

	engine := sync.NewEngine(outbox, cloud)
	sched := sync.NewScheduler(engine, outbox, conn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	checkout := NewCheckoutService(outbox, sched)
	history := NewHistoryService(outbox, cloud, conn)

	// Sale while disconnected: succeeds locally, nothing reaches the cloud.
	resp, err := checkout.IssueReceipt(ctx, dto.IssueReceiptRequest{
		MerchantID:    "m1",
		PaymentMethod: model.PayCash,
		Items: []dto.IssueReceiptItem{
			{Name: "espresso", Qty: 1, UnitPriceCents: 850, VatRate: vat("10")},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.CreatedOffline)
	assert.Equal(t, int64(850), resp.SubtotalCents)
	assert.Equal(t, int64(85), resp.TaxCents)
	assert.Equal(t, int64(935), resp.TotalCents)
	assert.Equal(t, int64(1), sched.PendingCount())
	assert.Zero(t, stub.submissionCount())

	offlineViews, err := history.List(ctx, "m1", dto.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, offlineViews, 1)
	assert.Equal(t, model.SyncPending, offlineViews[0].SyncStatus)
	assert.Nil(t, offlineViews[0].Number)

	// Reconnect: the edge fires exactly one drain.
	conn.SetOnline(true)
	require.Eventually(t, func() bool {
		return sched.PendingCount() == 0 && !sched.IsSyncing()
	}, 5*time.Second, 20*time.Millisecond, "outbox never drained after reconnect")

	assert.Equal(t, 1, stub.submissionCount())
	assert.Empty(t, sched.LastSyncError())

	var rec model.OutboxReceipt
	require.NoError(t, db.First(&rec, "client_receipt_id = ?", resp.ClientReceiptID).Error)
	assert.Equal(t, model.SyncSynced, rec.SyncStatus)
	require.NotNil(t, rec.Number)

	// A manual re-trigger finds nothing pending and resubmits nothing.
	_, err = sched.TriggerSync(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.submissionCount())

	// The reconciled view now shows the authoritative remote record.
	views, err := history.List(ctx, "m1", dto.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, resp.ClientReceiptID, views[0].ClientReceiptID)
	require.NotNil(t, views[0].Number)
	assert.Equal(t, *rec.Number, *views[0].Number)
	assert.Empty(t, views[0].SyncStatus)
}
