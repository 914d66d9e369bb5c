package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"enchiridion/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReportHandler struct {
	svc *service.ReportService
	log *zap.Logger
}

func NewReportHandler(svc *service.ReportService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, log: log.Named("report")}
}

func (h *ReportHandler) AuditVerify(c *gin.Context) {
	report, err := h.svc.AuditVerify(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "audit failed")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) SyncAll(c *gin.Context) {
	repaired, err := h.svc.SyncAll(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "sync failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "repaired": repaired})
}

// MonthlyCSV streams the activity report for ?month=&year=, defaulting to
// the current month. The CSV is buffered so failures still answer with JSON.
func (h *ReportHandler) MonthlyCSV(c *gin.Context) {
	now := time.Now().UTC()
	month, err := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	if err != nil {
		badRequest(c, "invalid month")
		return
	}
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	if err != nil {
		badRequest(c, "invalid year")
		return
	}
	var buf bytes.Buffer
	if err := h.svc.MonthlyCSV(c.Request.Context(), month, year, &buf); err != nil {
		respondError(c, h.log, err, "report failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="referrals-%04d-%02d.csv"`, year, month))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
