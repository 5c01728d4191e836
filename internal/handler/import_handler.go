package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"poscore/internal/middleware"
	"poscore/internal/model"
	"poscore/internal/service"
	"poscore/pkg/response"

	"github.com/gin-gonic/gin"
)

type ImportHandler struct {
	importService service.ImportService
}

func NewImportHandler(importService service.ImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

func (h *ImportHandler) RegisterRoutes(router *gin.RouterGroup) {
	imports := router.Group("/api/import")
	imports.Use(middleware.RequireRole(model.RoleAdmin))
	{
		imports.POST("", h.ImportWorkbook)
	}
}

type importRequest struct {
	Path string `json:"path" binding:"required"`
}

// ImportWorkbook runs the legacy workbook import. The workbook is either
// uploaded as multipart field "file" or referenced by local path in a JSON
// body, which is the normal case for a desktop terminal.
func (h *ImportHandler) ImportWorkbook(c *gin.Context) {
	path, cleanup, err := h.workbookPath(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	if cleanup != nil {
		defer cleanup()
	}

	report, err := h.importService.RunImport(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, "Import failed: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

func (h *ImportHandler) workbookPath(c *gin.Context) (string, func(), error) {
	if file, err := c.FormFile("file"); err == nil {
		dst := filepath.Join(os.TempDir(), filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, dst); err != nil {
			return "", nil, err
		}
		return dst, func() { _ = os.Remove(dst) }, nil
	}

	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", nil, err
	}
	return req.Path, nil, nil
}
