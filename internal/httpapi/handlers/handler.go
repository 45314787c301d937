package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/suPer8Hu/journal-platform/internal/ai"
	"github.com/suPer8Hu/journal-platform/internal/calendar"
	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/config"
	"github.com/suPer8Hu/journal-platform/internal/httpapi/middleware"
	"github.com/suPer8Hu/journal-platform/internal/journal"
	"github.com/suPer8Hu/journal-platform/internal/report"
	"github.com/suPer8Hu/journal-platform/internal/task"
	"github.com/suPer8Hu/journal-platform/internal/vault"
)

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Journal  *journal.Service
	Tasks    *task.Service
	Calendar *calendar.Service
	Reports  *report.Service
	Vault    *vault.Service
	AI       ai.Provider
}

// NewHandler wires every service on top of db. cache may be nil; scheduler
// receives report jobs; provider serves synchronous AI calls.
func NewHandler(db *gorm.DB, cfg config.Config, cache journal.Cache, scheduler report.Scheduler, provider ai.Provider) *Handler {
	entryRepo := journal.NewRepo(db)
	taskRepo := task.NewRepo(db)
	reportRepo := report.NewRepo(db)
	media := journal.NewDiskStore(cfg.UploadDir)

	journalSvc := journal.NewService(entryRepo, taskRepo, media, cache, cfg.DashboardCacheTTL)
	reportSvc := report.NewService(reportRepo, scheduler,
		report.WithStaleAfter(cfg.JobStaleAfter),
		report.WithDefaults(report.Defaults{
			Title:       cfg.ReportDefaultTitle,
			UserRole:    cfg.ReportDefaultRole,
			CompanyName: cfg.ReportDefaultCompany,
			FooterText:  cfg.ReportDefaultFooter,
		}),
	)
	vaultSvc := vault.NewService(
		vault.NewEntryTrash(entryRepo, media),
		vault.NewTaskTrash(taskRepo),
		vault.NewReportTrash(reportRepo),
		journalSvc,
	)

	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Journal:  journalSvc,
		Tasks:    task.NewService(taskRepo),
		Calendar: calendar.NewService(entryRepo, taskRepo),
		Reports:  reportSvc,
		Vault:    vaultSvc,
		AI:       provider,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true, "time": time.Now().UTC()})
}

// fail maps service errors onto the response envelope.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, journal.ErrValidation),
		errors.Is(err, task.ErrValidation),
		errors.Is(err, report.ErrValidation):
		common.Fail(c, http.StatusUnprocessableEntity, 10002, err.Error())
	case errors.Is(err, task.ErrInvalidTransition):
		common.Fail(c, http.StatusConflict, 40900, err.Error())
	case errors.Is(err, vault.ErrUnknownKind):
		common.Fail(c, http.StatusBadRequest, 10005, err.Error())
	case errors.Is(err, journal.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "entry not found")
	case errors.Is(err, task.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "task not found")
	case errors.Is(err, report.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40404, "report not found")
	case errors.Is(err, report.ErrJobNotFound):
		common.Fail(c, http.StatusNotFound, 40405, "job not found")
	case errors.Is(err, vault.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40406, "item not found in vault")
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(middleware.RequestIDKey),
		}).Error("request failed")
		common.Fail(c, http.StatusInternalServerError, 20001, "internal error")
	}
}
