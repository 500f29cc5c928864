package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tishajain880/Chronobank/internal/export"
	"github.com/tishajain880/Chronobank/internal/util"
)

type ExportHandler struct {
	Exporter *export.Exporter
}

func NewExportHandler(e *export.Exporter) *ExportHandler {
	return &ExportHandler{Exporter: e}
}

// ExportCSV streams the user's statement as CSV.
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	st, err := h.Exporter.Load(c.Request.Context(), user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load statement failed")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"statement_%s.csv\"",
		time.Now().Format("20060102_150405")))
	c.Status(http.StatusOK)

	// UTF-8 BOM so spreadsheet apps detect the encoding
	_, _ = c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})
	if err := export.WriteCSV(c.Writer, st); err != nil {
		_ = c.Error(err)
	}
}

// ExportXLSX streams the statement workbook, chain sheet included.
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	st, err := h.Exporter.Load(c.Request.Context(), user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load statement failed")
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"statement_%s.xlsx\"",
		time.Now().Format("20060102_150405")))
	c.Status(http.StatusOK)

	if err := export.WriteXLSX(c.Writer, st, h.Exporter.Chain.Blocks()); err != nil {
		_ = c.Error(err)
	}
}

// Archive stores the workbook in the export directory on the server.
func (h *ExportHandler) Archive(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	path, err := h.Exporter.Archive(c.Request.Context(), user.ID)
	if err != nil {
		_ = c.Error(err)
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "archive failed")
		return
	}
	util.Success(c, util.Response{"path": path})
}
