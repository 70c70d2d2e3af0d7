package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/importer"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

// multipartOverhead leaves room for form boundaries and the account field on top of the archive itself.
const multipartOverhead = 1 << 20

// ImportHandler accepts archive uploads.
type ImportHandler struct {
	cfg     *config.Config
	service *importer.Service
	log     zerolog.Logger
}

func NewImportHandler(cfg *config.Config, service *importer.Service, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		cfg:     cfg,
		service: service,
		log:     log.With().Str("component", "import-handler").Logger(),
	}
}

// Upload runs an import from a multipart "file" field. account_name is optional.
func (h *ImportHandler) Upload(c *gin.Context) {
	limit := h.cfg.MaxContentLength + multipartOverhead
	if c.Request.ContentLength > limit {
		platformerrors.WriteError(c, h.tooLarge(c), h.log)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			platformerrors.WriteError(c, h.tooLarge(c), h.log)
			return
		}
		platformerrors.WriteValidationError(c, "no file selected")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		platformerrors.WriteValidationError(c, "no file selected")
		return
	}
	if header.Size > h.cfg.MaxContentLength {
		platformerrors.WriteError(c, h.tooLarge(c), h.log)
		return
	}

	summary, err := h.service.ImportUpload(c.Request.Context(), importer.UploadRequest{
		Filename: header.Filename,
		Account:  c.Request.FormValue("account_name"),
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}

	h.log.Info().
		Str("import_id", summary.ImportID).
		Int("conversations", summary.Conversations.Loaded).
		Int("users", summary.Users.Loaded).
		Int("projects", summary.Projects.Loaded).
		Msg("import completed")
	c.JSON(http.StatusCreated, summary)
}

func (h *ImportHandler) tooLarge(c *gin.Context) error {
	return platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeTooLarge,
		fmt.Sprintf("archive exceeds max size of %d bytes", h.cfg.MaxContentLength), nil, "8d2e4f6a-1b3c-4d5e-9f70-a1b2c3d4e5f6")
}
