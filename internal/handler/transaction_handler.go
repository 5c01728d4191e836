package handler

import (
	"context"
	"errors"
	"net/http"

	"poscore/internal/middleware"
	"poscore/internal/model"
	"poscore/internal/service"
	"poscore/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionHandler struct {
	txService service.TransactionService
}

func NewTransactionHandler(txService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{txService: txService}
}

func (h *TransactionHandler) RegisterRoutes(router *gin.RouterGroup) {
	txs := router.Group("/api/transactions")
	txs.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCashier))
	{
		txs.POST("", h.Create)
		txs.GET("", h.List)
		txs.GET("/:id", h.Get)
		txs.PUT("/:id", h.Update)
		txs.POST("/:id/complete", h.Complete)
		txs.POST("/:id/cancel", h.Cancel)
	}
}

// Create opens a new bill, parked or completed
func (h *TransactionHandler) Create(c *gin.Context) {
	var input service.TransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tx, err := h.txService.Create(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tx))
}

// List returns bills filtered by status (default PARKED)
func (h *TransactionHandler) List(c *gin.Context) {
	status := c.DefaultQuery("status", model.TxStatusParked)
	txs, err := h.txService.ListByStatus(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, txs))
}

func (h *TransactionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid transaction ID"))
		return
	}
	tx, err := h.txService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tx))
}

// Update replaces the contents of a parked bill
func (h *TransactionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid transaction ID"))
		return
	}
	var input service.TransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tx, err := h.txService.Update(c.Request.Context(), id, input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tx))
}

func (h *TransactionHandler) Complete(c *gin.Context) {
	h.transition(c, h.txService.Complete)
}

func (h *TransactionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.txService.Cancel)
}

func (h *TransactionHandler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*model.Transaction, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid transaction ID"))
		return
	}
	tx, err := fn(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tx))
}

func (h *TransactionHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Transaction not found"))
	case errors.Is(err, service.ErrTransactionSynced), errors.Is(err, service.ErrTransactionNotParked):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	default:
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	}
}
