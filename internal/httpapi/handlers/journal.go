package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/httpapi/middleware"
	"github.com/suPer8Hu/journal-platform/internal/journal"
)

const maxUploadMemory = 32 << 20

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.Journal.Dashboard(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, d)
}

func (h *Handler) ListEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	p, err := h.Journal.List(c.Request.Context(), middleware.UserID(c), c.Query("search"), page)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) GetEntry(c *gin.Context) {
	e, err := h.Journal.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, e)
}

func (h *Handler) CreateEntry(c *gin.Context) {
	in, ok := bindEntry(c)
	if !ok {
		return
	}
	e, err := h.Journal.Create(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	common.OKStatus(c, http.StatusCreated, e)
}

func (h *Handler) UpdateEntry(c *gin.Context) {
	in, ok := bindEntry(c)
	if !ok {
		return
	}
	e, err := h.Journal.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, e)
}

func (h *Handler) DeleteEntry(c *gin.Context) {
	if err := h.Journal.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

// bindEntry reads a multipart (or urlencoded) entry form including optional
// image, video, audio and file uploads.
func bindEntry(c *gin.Context) (journal.SaveInput, bool) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid form")
		return journal.SaveInput{}, false
	}
	in := journal.SaveInput{
		Title:     c.PostForm("title"),
		Content:   c.PostForm("content"),
		EntryDate: c.PostForm("entry_date"),
		Uploads:   map[journal.MediaKind]*multipart.FileHeader{},
	}
	for _, kind := range []journal.MediaKind{journal.MediaImage, journal.MediaVideo, journal.MediaAudio, journal.MediaFile} {
		fh, err := c.FormFile(string(kind))
		if err != nil {
			continue
		}
		in.Uploads[kind] = fh
	}
	return in, true
}
