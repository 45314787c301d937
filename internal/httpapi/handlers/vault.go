package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/httpapi/middleware"
)

func (h *Handler) CalendarEvents(c *gin.Context) {
	events, err := h.Calendar.Events(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, events)
}

func (h *Handler) VaultIndex(c *gin.Context) {
	idx, err := h.Vault.Index(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, idx)
}

func (h *Handler) VaultRestore(c *gin.Context) {
	if err := h.Vault.Restore(c.Request.Context(), middleware.UserID(c), c.Param("kind"), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"restored": true})
}

func (h *Handler) VaultPurge(c *gin.Context) {
	if err := h.Vault.Purge(c.Request.Context(), middleware.UserID(c), c.Param("kind"), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"purged": true})
}
