package handler

import (
	"net/http"

	"poscore/internal/middleware"
	"poscore/internal/model"
	"poscore/internal/repository"
	"poscore/pkg/pagination"
	"poscore/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MasterHandler serves read-only master data to the sales screen. These are
// thin pass-throughs to the repositories; all mutation happens via import or
// sync.
type MasterHandler struct {
	productRepo repository.ProductRepository
	masterRepo  repository.MasterDataRepository
}

func NewMasterHandler(productRepo repository.ProductRepository, masterRepo repository.MasterDataRepository) *MasterHandler {
	return &MasterHandler{productRepo: productRepo, masterRepo: masterRepo}
}

func (h *MasterHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	api.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCashier))
	{
		api.GET("/products", h.ListProducts)
		api.GET("/products/:sku", h.GetProduct)
		api.GET("/customers", h.ListCustomers)
		api.GET("/employees", h.ListEmployees)
		api.GET("/bank-accounts", h.ListBankAccounts)
	}
}

func (h *MasterHandler) ListProducts(c *gin.Context) {
	params := pagination.Parse(c)
	search := c.Query("search")

	products, total, err := h.productRepo.List(c.Request.Context(), params.Page, params.Limit, search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, products, params.Page, params.Limit, total))
}

func (h *MasterHandler) GetProduct(c *gin.Context) {
	product, err := h.productRepo.FindBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Product not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

func (h *MasterHandler) ListCustomers(c *gin.Context) {
	params := pagination.Parse(c)
	search := c.Query("search")

	customers, total, err := h.masterRepo.ListCustomers(c.Request.Context(), params.Page, params.Limit, search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, customers, params.Page, params.Limit, total))
}

func (h *MasterHandler) ListEmployees(c *gin.Context) {
	employees, err := h.masterRepo.ListEmployees(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, employees))
}

func (h *MasterHandler) ListBankAccounts(c *gin.Context) {
	accounts, err := h.masterRepo.ListBankAccounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, accounts))
}
