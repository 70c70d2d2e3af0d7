package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/archive-api/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(provider *handlers.Provider) *Routes {
	return &Routes{handlers: provider}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(router gin.IRouter) {
	group := router.Group("/v1")

	group.POST("/imports", r.handlers.Import.Upload)
	group.GET("/imports", r.handlers.Browse.ListImports)

	conversations := group.Group("/conversations/:uuid")
	conversations.GET("", r.handlers.Browse.GetConversation)
	conversations.GET("/export", r.handlers.Browse.ExportConversation)
	conversations.POST("/messages/export", r.handlers.Browse.ExportMessages)
	conversations.GET("/messages/:mi/attachments/:ai", r.handlers.Browse.GetAttachment)
	conversations.GET("/messages/:mi/attachments/:ai/download", r.handlers.Browse.DownloadAttachment)
	conversations.GET("/messages/:mi/artifacts/:ci", r.handlers.Browse.GetArtifact)

	group.POST("/search/conversations", r.handlers.Browse.SearchConversations)

	group.GET("/projects/:uuid", r.handlers.Browse.GetProject)
	group.GET("/recent/:collection", r.handlers.Browse.Recent)
	group.GET("/stats", r.handlers.Browse.Stats)
	group.GET("/accounts", r.handlers.Browse.Accounts)
}
