package handlers

import (
	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/importer"
)

// Provider wires HTTP handlers.
type Provider struct {
	Import *ImportHandler
	Browse *BrowseHandler
}

func NewProvider(cfg *config.Config, importService *importer.Service, browseService *browse.Service, log zerolog.Logger) *Provider {
	return &Provider{
		Import: NewImportHandler(cfg, importService, log),
		Browse: NewBrowseHandler(browseService, log),
	}
}
