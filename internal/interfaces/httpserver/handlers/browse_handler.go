package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/interfaces/httpserver/requests"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

// BrowseHandler serves read views over imported data.
type BrowseHandler struct {
	service *browse.Service
	log     zerolog.Logger
}

func NewBrowseHandler(service *browse.Service, log zerolog.Logger) *BrowseHandler {
	return &BrowseHandler{
		service: service,
		log:     log.With().Str("component", "browse-handler").Logger(),
	}
}

func (h *BrowseHandler) GetConversation(c *gin.Context) {
	rec, err := h.service.Conversation(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *BrowseHandler) ExportConversation(c *gin.Context) {
	file, err := h.service.ExportConversation(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	sendFile(c, file)
}

func (h *BrowseHandler) ExportMessages(c *gin.Context) {
	var req requests.ExportMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "invalid export request: "+err.Error())
		return
	}
	file, err := h.service.ExportMessages(c.Request.Context(), c.Param("uuid"), req.MessageIndices, req.Format)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	sendFile(c, file)
}

func (h *BrowseHandler) GetAttachment(c *gin.Context) {
	mi, ai, ok := indexParams(c, "mi", "ai")
	if !ok {
		return
	}
	view, err := h.service.Attachment(c.Request.Context(), c.Param("uuid"), mi, ai)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *BrowseHandler) DownloadAttachment(c *gin.Context) {
	mi, ai, ok := indexParams(c, "mi", "ai")
	if !ok {
		return
	}
	file, err := h.service.AttachmentFile(c.Request.Context(), c.Param("uuid"), mi, ai)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	sendFile(c, file)
}

func (h *BrowseHandler) GetArtifact(c *gin.Context) {
	mi, ci, ok := indexParams(c, "mi", "ci")
	if !ok {
		return
	}
	view, err := h.service.Artifact(c.Request.Context(), c.Param("uuid"), mi, ci)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *BrowseHandler) GetProject(c *gin.Context) {
	rec, err := h.service.Project(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *BrowseHandler) Recent(c *gin.Context) {
	h.page(c, c.Param("collection"))
}

// ListImports pages the import history, newest first.
func (h *BrowseHandler) ListImports(c *gin.Context) {
	h.page(c, export.CollectionImportHistory)
}

func (h *BrowseHandler) page(c *gin.Context, collection string) {
	var q requests.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		platformerrors.WriteValidationError(c, "invalid pagination: "+err.Error())
		return
	}
	page, err := h.service.Recent(c.Request.Context(), collection, q.Page, q.PerPage)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SearchConversations filters, sorts and pages conversations. An empty body lists everything.
func (h *BrowseHandler) SearchConversations(c *gin.Context) {
	var req requests.SearchConversationsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		platformerrors.WriteValidationError(c, "invalid search request: "+err.Error())
		return
	}
	result, err := h.service.Search(c.Request.Context(), browse.SearchQuery{
		Query: req.Query,
		Filters: browse.SearchFilters{
			Account:        req.Filters.Account,
			DateFrom:       req.Filters.DateFrom,
			HasAttachments: req.Filters.HasAttachments,
		},
		Page:      req.Page,
		PerPage:   req.PerPage,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *BrowseHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *BrowseHandler) Accounts(c *gin.Context) {
	accounts, err := h.service.Accounts(c.Request.Context())
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// indexParams parses two integer path params, writing a 400 when either is malformed.
func indexParams(c *gin.Context, first, second string) (int, int, bool) {
	a, errA := strconv.Atoi(c.Param(first))
	b, errB := strconv.Atoi(c.Param(second))
	if errA != nil || errB != nil {
		platformerrors.WriteValidationError(c, "message and item indices must be integers")
		return 0, 0, false
	}
	return a, b, true
}

func sendFile(c *gin.Context, file *browse.File) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
