package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tillsync/internal/apierror"
	"tillsync/internal/dto"
	"tillsync/internal/sync"
)

type SyncHandler struct{ scheduler *sync.Scheduler }

func NewSyncHandler(scheduler *sync.Scheduler) *SyncHandler {
	return &SyncHandler{scheduler: scheduler}
}

// Status exposes the reactive sync state for the UI badge.
func (h *SyncHandler) Status(c *gin.Context) {
	if err := h.scheduler.RefreshPendingCount(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to read pending count"))
		return
	}
	c.JSON(http.StatusOK, dto.SyncStatusResponse{
		PendingCount: h.scheduler.PendingCount(),
		IsSyncing:    h.scheduler.IsSyncing(),
		Online:       h.scheduler.Online(),
		LastError:    h.scheduler.LastSyncError(),
	})
}

// Trigger runs a manual drain pass. 409 when offline or when a drain is
// already in flight; the counts returned are advisory.
func (h *SyncHandler) Trigger(c *gin.Context) {
	res, err := h.scheduler.TriggerSync(c.Request.Context(), c.Query("merchantId"))
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrOffline):
			c.JSON(http.StatusConflict, apierror.New("offline"))
		case errors.Is(err, sync.ErrSyncInFlight):
			c.JSON(http.StatusConflict, apierror.New("sync already in progress"))
		default:
			c.JSON(http.StatusInternalServerError, apierror.New("sync failed"))
		}
		return
	}
	c.JSON(http.StatusOK, dto.SyncTriggerResponse{Synced: res.Synced, Failed: res.Failed})
}
