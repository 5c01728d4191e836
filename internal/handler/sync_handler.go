package handler

import (
	"errors"
	"net/http"
	"strconv"

	"poscore/internal/middleware"
	"poscore/internal/model"
	"poscore/internal/service"
	"poscore/pkg/response"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	syncService service.SyncService
}

func NewSyncHandler(syncService service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

func (h *SyncHandler) RegisterRoutes(router *gin.RouterGroup) {
	sync := router.Group("/api/sync")
	sync.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCashier))
	{
		sync.POST("/pull", h.Pull)
		sync.POST("/push", h.Push)
		sync.GET("/status", h.Status)
		sync.GET("/logs", h.Logs)
	}
}

// Pull refreshes local master data from the head office
func (h *SyncHandler) Pull(c *gin.Context) {
	result, err := h.syncService.PullFromServer(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
			return
		}
		c.JSON(http.StatusBadGateway, response.Error(http.StatusBadGateway, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Push sends pending completed sales to the head office
func (h *SyncHandler) Push(c *gin.Context) {
	result, err := h.syncService.PushSales(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Status reports the last successful pull time and pending push count
func (h *SyncHandler) Status(c *gin.Context) {
	lastSync, err := h.syncService.GetLastSyncTime(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	pending, err := h.syncService.PendingSales(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"last_sync_time": lastSync,
		"pending_sales":  pending,
	}))
}

// Logs returns recent sync attempts, newest first
func (h *SyncHandler) Logs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.syncService.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, logs))
}
