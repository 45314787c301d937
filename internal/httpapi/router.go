package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/suPer8Hu/journal-platform/internal/ai"
	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/config"
	"github.com/suPer8Hu/journal-platform/internal/httpapi/handlers"
	"github.com/suPer8Hu/journal-platform/internal/httpapi/middleware"
	"github.com/suPer8Hu/journal-platform/internal/journal"
	"github.com/suPer8Hu/journal-platform/internal/metrics"
	"github.com/suPer8Hu/journal-platform/internal/report"
)

func NewRouter(db *gorm.DB, cfg config.Config, cache journal.Cache, scheduler report.Scheduler, provider ai.Provider) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = 32 << 20
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, cache, scheduler, provider)

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.Static("/storage", cfg.UploadDir)

	// users
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUserByID)

	// auth
	r.POST("/login", h.Login)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/dashboard", h.Dashboard)
	authGroup.GET("/calendar", h.CalendarEvents)

	entries := authGroup.Group("/entries")
	entries.GET("", h.ListEntries)
	entries.POST("", h.CreateEntry)
	entries.GET("/:id", h.GetEntry)
	entries.PUT("/:id", h.UpdateEntry)
	entries.DELETE("/:id", h.DeleteEntry)

	tasks := authGroup.Group("/tasks")
	tasks.GET("", h.ListTasks)
	tasks.POST("", h.CreateTask)
	tasks.PUT("/:id", h.UpdateTask)
	tasks.DELETE("/:id", h.DeleteTask)
	tasks.POST("/:id/toggle", h.ToggleTask)
	tasks.POST("/:id/start", h.StartTask)
	tasks.POST("/:id/pause", h.PauseTask)

	vault := authGroup.Group("/vault")
	vault.GET("", h.VaultIndex)
	vault.POST("/:kind/:id/restore", h.VaultRestore)
	vault.DELETE("/:kind/:id", h.VaultPurge)

	// reports: async generation, then editing and export
	reports := authGroup.Group("/reports")
	reports.POST("/generate", h.GenerateReport)
	reports.GET("/jobs/:job_id", h.ReportJobStatus)
	reports.GET("/draft", h.ReportDraft)
	reports.POST("/preview", h.PreviewReport)
	reports.POST("/refine", h.RefineText)
	reports.GET("", h.ListReports)
	reports.POST("", h.StoreReport)
	reports.GET("/:id", h.GetReport)
	reports.PUT("/:id", h.UpdateReport)
	reports.DELETE("/:id", h.DeleteReport)
	reports.GET("/:id/export", h.ExportReport)
	return r
}
