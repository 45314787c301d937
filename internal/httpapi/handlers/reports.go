package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/journal-platform/internal/ai"
	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/httpapi/middleware"
	"github.com/suPer8Hu/journal-platform/internal/report"
)

type generateReq struct {
	EntryIDs []string `json:"entry_ids"`
}

// GenerateReport queues a report job and answers 202 right away.
func (h *Handler) GenerateReport(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sub, err := h.Reports.StartGeneration(c.Request.Context(), middleware.UserID(c), report.SubmitInput{
		EntryIDs:       req.EntryIDs,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if errors.Is(err, report.ErrSchedule) {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "failed to start report generation")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	common.OKStatus(c, http.StatusAccepted, sub)
}

func (h *Handler) ReportJobStatus(c *gin.Context) {
	v, err := h.Reports.JobStatus(c.Request.Context(), middleware.UserID(c), c.Param("job_id"))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, v)
}

func (h *Handler) ReportDraft(c *gin.Context) {
	d, err := h.Reports.Draft(c.Request.Context(), middleware.UserID(c), h.userName(c), c.Query("job_id"))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, d)
}

type reportReq struct {
	Content     string         `json:"content"`
	Period      *report.Period `json:"period"`
	Title       *string        `json:"report_title"`
	UserName    *string        `json:"user_name"`
	UserRole    *string        `json:"user_role"`
	CompanyName *string        `json:"company_name"`
	FooterText  *string        `json:"footer_text"`
}

func (r reportReq) input() report.Input {
	return report.Input{
		Content:     r.Content,
		Period:      r.Period,
		Title:       r.Title,
		UserName:    r.UserName,
		UserRole:    r.UserRole,
		CompanyName: r.CompanyName,
		FooterText:  r.FooterText,
	}
}

func bindReport(c *gin.Context) (reportReq, bool) {
	var req reportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return req, false
	}
	return req, true
}

func (h *Handler) PreviewReport(c *gin.Context) {
	req, ok := bindReport(c)
	if !ok {
		return
	}
	d, err := h.Reports.Preview(h.userName(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, d)
}

func (h *Handler) ListReports(c *gin.Context) {
	rs, err := h.Reports.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, rs)
}

func (h *Handler) GetReport(c *gin.Context) {
	r, err := h.Reports.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, r)
}

func (h *Handler) StoreReport(c *gin.Context) {
	req, ok := bindReport(c)
	if !ok {
		return
	}
	r, err := h.Reports.Store(c.Request.Context(), middleware.UserID(c), h.userName(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	common.OKStatus(c, http.StatusCreated, r)
}

func (h *Handler) UpdateReport(c *gin.Context) {
	req, ok := bindReport(c)
	if !ok {
		return
	}
	r, err := h.Reports.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, r)
}

func (h *Handler) DeleteReport(c *gin.Context) {
	if err := h.Reports.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

func (h *Handler) ExportReport(c *gin.Context) {
	f, err := report.ParseExportFormat(c.Query("format"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10006, err.Error())
		return
	}
	r, err := h.Reports.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	out, err := r.ExportAs(f)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(out.FileName))
	c.Data(http.StatusOK, out.ContentType, out.Body)
}

type refineReq struct {
	Content string `json:"content"`
}

// RefineText rewrites a journal entry synchronously with the AI provider.
func (h *Handler) RefineText(c *gin.Context) {
	var req refineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if h.AI == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50302, "AI Service Unavailable")
		return
	}
	text, err := ai.Refine(c.Request.Context(), h.AI, req.Content)
	if err != nil {
		var aerr *ai.Error
		switch {
		case errors.Is(err, ai.ErrEmptyContent):
			common.Fail(c, http.StatusUnprocessableEntity, 10002, err.Error())
		case errors.As(err, &aerr) && aerr.Kind == ai.KindConfig:
			common.Fail(c, http.StatusServiceUnavailable, 50302, aerr.Message)
		default:
			common.Fail(c, http.StatusBadGateway, 50201, "Failed to connect to AI service.")
		}
		return
	}
	common.OK(c, gin.H{"refined": text})
}
