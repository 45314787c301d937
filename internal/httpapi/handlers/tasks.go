package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/httpapi/middleware"
	"github.com/suPer8Hu/journal-platform/internal/task"
)

func (h *Handler) ListTasks(c *gin.Context) {
	ts, err := h.Tasks.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, ts)
}

func (h *Handler) CreateTask(c *gin.Context) {
	var in task.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	uid := middleware.UserID(c)
	t, err := h.Tasks.Create(c.Request.Context(), uid, in)
	if err != nil {
		fail(c, err)
		return
	}
	h.Journal.Invalidate(c.Request.Context(), uid)
	common.OKStatus(c, http.StatusCreated, t)
}

func (h *Handler) UpdateTask(c *gin.Context) {
	var in task.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	h.taskWrite(c, func(ctx context.Context, uid uint64, id string) (*task.Task, error) {
		return h.Tasks.Update(ctx, uid, id, in)
	})
}

func (h *Handler) ToggleTask(c *gin.Context) { h.taskWrite(c, h.Tasks.Toggle) }
func (h *Handler) StartTask(c *gin.Context)  { h.taskWrite(c, h.Tasks.Start) }
func (h *Handler) PauseTask(c *gin.Context)  { h.taskWrite(c, h.Tasks.Pause) }

func (h *Handler) DeleteTask(c *gin.Context) {
	uid := middleware.UserID(c)
	if err := h.Tasks.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	h.Journal.Invalidate(c.Request.Context(), uid)
	common.OK(c, gin.H{"deleted": true})
}

// taskWrite runs a task mutation and drops the cached dashboard, which
// lists open tasks.
func (h *Handler) taskWrite(c *gin.Context, fn func(ctx context.Context, uid uint64, id string) (*task.Task, error)) {
	uid := middleware.UserID(c)
	t, err := fn(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	h.Journal.Invalidate(c.Request.Context(), uid)
	common.OK(c, t)
}
